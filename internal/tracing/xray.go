// Package tracing provides AWS X-Ray tracing of pipeline runs.
package tracing

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-xray-sdk-go/strategy/ctxmissing"
	"github.com/aws/aws-xray-sdk-go/strategy/sampling"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/aws/aws-xray-sdk-go/xraylog"
	"github.com/sirupsen/logrus"
)

// Config contains X-Ray configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	SamplingRate   float64
	DaemonAddr     string
}

var enabled atomic.Bool

// Logger adapter for X-Ray SDK.
type xrayLoggerAdapter struct {
	logger *logrus.Logger
}

func (l *xrayLoggerAdapter) Log(level xraylog.LogLevel, msg fmt.Stringer) {
	switch level {
	case xraylog.LogLevelDebug:
		l.logger.Debug(msg.String())
	case xraylog.LogLevelInfo:
		l.logger.Info(msg.String())
	case xraylog.LogLevelWarn:
		l.logger.Warn(msg.String())
	case xraylog.LogLevelError:
		l.logger.Error(msg.String())
	}
}

// samplingRules keeps one trace per second plus SamplingRate of the rest
func samplingRules(rate float64) []byte {
	return []byte(fmt.Sprintf(`{"version":2,"default":{"fixed_target":1,"rate":%g},"rules":[]}`, rate))
}

// Initialize configures X-Ray. Tracing stays off, and every helper is a no-op, unless cfg.Enabled.
func Initialize(cfg Config, logger *logrus.Logger) error {
	if !cfg.Enabled {
		enabled.Store(false)
		return nil
	}

	strategy, err := sampling.NewLocalizedStrategyFromJSONBytes(samplingRules(cfg.SamplingRate))
	if err != nil {
		return fmt.Errorf("invalid sampling rate %v: %w", cfg.SamplingRate, err)
	}

	xray.SetLogger(&xrayLoggerAdapter{logger: logger})
	if err := xray.Configure(xray.Config{
		DaemonAddr:             cfg.DaemonAddr,
		ServiceVersion:         cfg.ServiceVersion,
		SamplingStrategy:       strategy,
		ContextMissingStrategy: ctxmissing.NewDefaultLogErrorStrategy(),
	}); err != nil {
		return fmt.Errorf("failed to configure x-ray: %w", err)
	}
	enabled.Store(true)

	logger.WithFields(logrus.Fields{
		"daemon_addr":   cfg.DaemonAddr,
		"sampling_rate": cfg.SamplingRate,
		"service_name":  cfg.ServiceName,
	}).Info("AWS X-Ray initialized")
	return nil
}

// Enabled reports whether Initialize turned tracing on
func Enabled() bool {
	return enabled.Load()
}

// StartSegment opens a top-level segment. The returned func closes it with the run's error.
func StartSegment(ctx context.Context, name string) (context.Context, func(error)) {
	if !Enabled() {
		return ctx, func(error) {}
	}
	ctx, seg := xray.BeginSegment(ctx, name)
	return ctx, seg.Close
}

// StartSubsegment opens a child of the segment in ctx; without one it does nothing.
func StartSubsegment(ctx context.Context, name string) (context.Context, func(error)) {
	if !Enabled() || xray.GetSegment(ctx) == nil {
		return ctx, func(error) {}
	}
	ctx, seg := xray.BeginSubsegment(ctx, name)
	return ctx, seg.Close
}

// AddAnnotation adds an indexed annotation to the current segment.
func AddAnnotation(ctx context.Context, key string, value interface{}) {
	if !Enabled() {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}

// AddMetadata adds metadata to the current segment.
func AddMetadata(ctx context.Context, key string, value interface{}) {
	if !Enabled() {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddMetadata(key, value)
	}
}
