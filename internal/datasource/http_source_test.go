package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(retries, breaker int) *RateLimitedHTTPClient {
	return NewRateLimitedHTTPClient(HTTPClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        retries,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      5 * time.Millisecond,
		CircuitBreakerMax: breaker,
	}, nil)
}

func TestHTTPSourceLoad(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/matches.csv", "secret", CSVOptions{}, fastClient(0, 5), nil)
	batch, err := src.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, "Bearer secret", auth.Load())
	assert.Equal(t, "http", src.Name())
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", CSVOptions{}, fastClient(2, 5), nil)
	batch, err := src.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPSourceStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusUnauthorized, ErrCodeAuthenticationFailed},
		{http.StatusForbidden, ErrCodeAuthenticationFailed},
		{http.StatusBadRequest, ErrCodeNetworkError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPSource(srv.URL, "", CSVOptions{}, fastClient(0, 5), nil).Load(context.Background())

			var dsErr DataSourceError
			require.True(t, errors.As(err, &dsErr))
			assert.Equal(t, tt.code, dsErr.Code)
			assert.ErrorIs(t, err, ErrUnexpectedReply)
		})
	}
}

func TestHTTPSourceInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("date,home_team\n2024-01-01,A\n"))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, "", CSVOptions{}, fastClient(0, 5), nil).Load(context.Background())

	var dsErr DataSourceError
	require.True(t, errors.As(err, &dsErr))
	assert.Equal(t, ErrCodeInvalidData, dsErr.Code)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestRateLimitedClientCircuitBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := fastClient(0, 2)
	ctx := context.Background()

	_, err := client.Get(ctx, url, nil)
	require.Error(t, err)
	assert.False(t, client.IsOpen())

	_, err = client.Get(ctx, url, nil)
	require.Error(t, err)
	assert.True(t, client.IsOpen())

	_, err = client.Get(ctx, url, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestRateLimitedClientHonoursContext(t *testing.T) {
	client := NewRateLimitedHTTPClient(HTTPClientConfig{RateLimit: 0.001, Burst: 1}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// The first token is free; the second would wait far past the deadline.
	require.NoError(t, client.limiter.Wait(ctx))
	_, err := client.Get(ctx, "http://127.0.0.1:0/", nil)
	assert.Error(t, err)
}

func TestCustomRetryPolicy(t *testing.T) {
	policy := customRetryPolicy()
	ctx := context.Background()

	for status, want := range map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusNotFound:            false,
		http.StatusOK:                  false,
	} {
		retry, _ := policy(ctx, &http.Response{StatusCode: status}, nil)
		assert.Equal(t, want, retry, "status %d", status)
	}

	retry, _ := policy(ctx, nil, errors.New("connection reset"))
	assert.True(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err := policy(cancelled, nil, errors.New("connection reset"))
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}
