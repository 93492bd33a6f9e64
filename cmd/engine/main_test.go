package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/datasource"
	"github.com/yourusername/totals-edge/internal/logger"
)

func TestGenerateWritesParsableCSV(t *testing.T) {
	appLog = logger.Discard()
	genMatches, genSeed = 60, 3
	genOut = filepath.Join(t.TempDir(), "data", "matches.csv")

	require.NoError(t, generate(&bytes.Buffer{}))

	f, err := os.Open(genOut)
	require.NoError(t, err)
	defer f.Close()

	batch, stats, err := datasource.ParseCSV(f, datasource.CSVOptions{FeatureColumns: datasource.SyntheticFeatureColumns})
	require.NoError(t, err)
	assert.Equal(t, 60, batch.Len())
	assert.Zero(t, stats.Dropped)
}

func TestGenerateToStdout(t *testing.T) {
	appLog = logger.Discard()
	genMatches, genSeed, genOut = 5, 1, "-"

	var buf bytes.Buffer
	require.NoError(t, generate(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "date,"))
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "evaluate", "generate", "serve"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, runCmd.Flags().Lookup("evaluate-only"))
	assert.NotNil(t, evaluateCmd.Flags().Lookup("data"))
}
