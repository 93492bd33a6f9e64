package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/models"
)

// HTTPSource downloads a match CSV over HTTP(S)
type HTTPSource struct {
	url    string
	token  string
	opts   CSVOptions
	client *RateLimitedHTTPClient
	logger *logrus.Logger
}

// NewHTTPSource creates a remote CSV source. token is sent as a bearer credential when non-empty.
func NewHTTPSource(url, token string, opts CSVOptions, client *RateLimitedHTTPClient, log *logrus.Logger) *HTTPSource {
	log = logger.OrDiscard(log)
	if client == nil {
		client = NewRateLimitedHTTPClient(DefaultHTTPClientConfig(), log)
	}
	return &HTTPSource{url: url, token: token, opts: opts, client: client, logger: log}
}

// Name returns the name of the data source
func (s *HTTPSource) Name() string {
	return "http"
}

// Load fetches and parses the remote table
func (s *HTTPSource) Load(ctx context.Context) (models.Batch, error) {
	headers := map[string]string{"Accept": "text/csv"}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	resp, err := s.client.Get(ctx, s.url, headers)
	if err != nil {
		return models.Batch{}, NewDataSourceError(s.Name(), ErrCodeNetworkError, "fetch "+s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.Batch{}, NewDataSourceError(s.Name(), statusCode(resp.StatusCode),
			fmt.Sprintf("GET %s returned %d", s.url, resp.StatusCode), ErrUnexpectedReply)
	}

	batch, stats, err := ParseCSV(resp.Body, s.opts)
	if err != nil {
		return models.Batch{}, NewDataSourceError(s.Name(), ErrCodeInvalidData, s.url, err)
	}
	logStats(s.logger, s.Name(), s.url, stats)
	return batch, nil
}

func statusCode(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimitExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeAuthenticationFailed
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status >= 500:
		return ErrCodeServerError
	default:
		return ErrCodeNetworkError
	}
}
