package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"bogus", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.level, "development").GetLevel())
		})
	}
}

func TestNewLoggerProductionUsesJSON(t *testing.T) {
	log := New("info", "production")
	_, ok := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	log = New("info", "development")
	_, ok = log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	log, _ := setupTestLogger()
	assert.Same(t, log, OrDiscard(log))
}

func TestStrategyLoggerRejection(t *testing.T) {
	log, buf := setupTestLogger()
	sl := NewStrategyLogger(log)

	sl.LogRejection("m-12", "over", "signal", 0.84, 1.9)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, "strategy", entry["component"])
	assert.Equal(t, "signal", entry["reason"])
	assert.Equal(t, "m-12", entry["match_id"])
}

func TestStrategyLoggerGatingSummary(t *testing.T) {
	log, buf := setupTestLogger()
	sl := NewStrategyLogger(log)

	sl.LogGatingSummary(40, 3, map[string]int{"probability": 30, "odds": 7}, 0.05, 0.8)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, float64(3), entry["admitted"])
	assert.Equal(t, "Gating completed", entry["msg"])
}

func TestModelLoggerFold(t *testing.T) {
	log, buf := setupTestLogger()
	ml := NewModelLogger(log)

	ml.LogFold(2, 5, 166, 83, 0.241, 0.676)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, "model", entry["component"])
	assert.Equal(t, float64(2), entry["fold"])
	assert.Equal(t, 0.241, entry["brier_score"])
}

func TestAuditLoggerStopLoss(t *testing.T) {
	log, buf := setupTestLogger()
	al := NewAuditLogger(log)

	al.LogStopLoss(5, 12, 4, 842.5)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, "audit", entry["component"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, float64(5), entry["consecutive_losses"])
}

func TestAuditLoggerSettlement(t *testing.T) {
	log, buf := setupTestLogger()
	al := NewAuditLogger(log)

	al.LogSettlement(7, "under", 1.85, 30, 25.5, 1025.5, true, 0)

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, true, entry["won"])
	assert.Equal(t, 1025.5, entry["bankroll"])
}

func BenchmarkStrategyLoggerAdmission(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	sl := NewStrategyLogger(log)

	for i := 0; i < b.N; i++ {
		sl.LogAdmission("m-1", "over", 0.83, 1.8, 0.49, 0.03)
	}
}
