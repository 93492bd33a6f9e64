package tracing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/aws/aws-xray-sdk-go/xraylog"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/logger"
)

func TestDisabledHelpersAreNoOps(t *testing.T) {
	require.NoError(t, Initialize(Config{Enabled: false}, logger.Discard()))
	assert.False(t, Enabled())

	ctx := context.Background()
	segCtx, closeSeg := StartSegment(ctx, "pipeline.full")
	assert.Equal(t, ctx, segCtx)
	closeSeg(nil)

	subCtx, closeSub := StartSubsegment(ctx, "load")
	assert.Equal(t, ctx, subCtx)
	closeSub(errors.New("ignored"))

	AddAnnotation(ctx, "run_id", "abc")
	AddMetadata(ctx, "matches", 10)
}

func TestEnabledOpensSegments(t *testing.T) {
	require.NoError(t, Initialize(Config{
		ServiceName:    "totals-edge",
		ServiceVersion: "test",
		Enabled:        true,
		SamplingRate:   1,
		DaemonAddr:     "127.0.0.1:2000",
	}, logger.Discard()))
	defer func() { _ = Initialize(Config{}, logger.Discard()) }()
	require.True(t, Enabled())

	ctx, closeSeg := StartSegment(context.Background(), "pipeline.full")
	defer closeSeg(nil)
	seg := xray.GetSegment(ctx)
	require.NotNil(t, seg)
	assert.Equal(t, "pipeline.full", seg.Name)

	AddAnnotation(ctx, "matches", 240)
	AddMetadata(ctx, "mode", "full")

	subCtx, closeSub := StartSubsegment(ctx, "load")
	sub := xray.GetSegment(subCtx)
	require.NotNil(t, sub)
	assert.Equal(t, "load", sub.Name)
	closeSub(nil)
}

func TestSubsegmentWithoutParent(t *testing.T) {
	require.NoError(t, Initialize(Config{Enabled: true, SamplingRate: 0.5, DaemonAddr: "127.0.0.1:2000"}, logger.Discard()))
	defer func() { _ = Initialize(Config{}, logger.Discard()) }()

	ctx := context.Background()
	subCtx, closeSub := StartSubsegment(ctx, "orphan")
	assert.Equal(t, ctx, subCtx)
	closeSub(nil)
}

func TestSamplingRules(t *testing.T) {
	tests := []float64{0, 0.1, 1}
	for _, rate := range tests {
		var doc struct {
			Version int `json:"version"`
			Default struct {
				FixedTarget int     `json:"fixed_target"`
				Rate        float64 `json:"rate"`
			} `json:"default"`
		}
		require.NoError(t, json.Unmarshal(samplingRules(rate), &doc))
		assert.Equal(t, 2, doc.Version)
		assert.Equal(t, 1, doc.Default.FixedTarget)
		assert.InDelta(t, rate, doc.Default.Rate, 1e-12)
	}
}

type message string

func (m message) String() string { return string(m) }

func TestLoggerAdapterRoutesLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	var adapter xraylog.Logger = &xrayLoggerAdapter{logger: log}

	tests := []struct {
		level xraylog.LogLevel
		want  logrus.Level
	}{
		{xraylog.LogLevelDebug, logrus.DebugLevel},
		{xraylog.LogLevelInfo, logrus.InfoLevel},
		{xraylog.LogLevelWarn, logrus.WarnLevel},
		{xraylog.LogLevelError, logrus.ErrorLevel},
	}
	for _, tt := range tests {
		hook.Reset()
		adapter.Log(tt.level, message("emitter started"))
		require.Len(t, hook.Entries, 1)
		assert.Equal(t, tt.want, hook.LastEntry().Level)
		assert.Equal(t, "emitter started", hook.LastEntry().Message)
	}
}

func TestInitializeInstallsLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	require.NoError(t, Initialize(Config{Enabled: true, SamplingRate: 1, DaemonAddr: "127.0.0.1:2000"}, log))
	defer func() { _ = Initialize(Config{}, logger.Discard()) }()

	assert.Equal(t, "AWS X-Ray initialized", hook.LastEntry().Message)
}
