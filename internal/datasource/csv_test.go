package datasource

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/models"
)

const sampleCSV = `date,home_team,away_team,league,home_goals,away_goals,total_xg,over25_open_odds,over25_close_odds,under25_open_odds,under25_close_odds,home_form,away_form,note
2024-01-03,A,B,L1,2,1,2.8,2.00,1.80,1.90,2.05,1.4,1.1,x
2024-01-01,C,D,L2,0,0,1.9,2.10,2.12,1.80,1.60,1.2,0.9,y
2024-01-02,E,F,L1,,,2.4,1.95,1.95,1.95,1.95,1.3,1.3,z
`

func parse(t *testing.T, data string, opts CSVOptions) (models.Batch, LoadStats) {
	t.Helper()
	batch, stats, err := ParseCSV(strings.NewReader(data), opts)
	require.NoError(t, err)
	return batch, stats
}

func TestParseCSVSortsAndIndexes(t *testing.T) {
	batch, stats := parse(t, sampleCSV, CSVOptions{})

	require.Equal(t, 3, batch.Len())
	assert.Equal(t, []string{"C", "E", "A"}, []string{
		batch.Matches[0].HomeTeam, batch.Matches[1].HomeTeam, batch.Matches[2].HomeTeam,
	})
	for i, m := range batch.Matches {
		assert.Equal(t, i, m.Index)
	}

	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 0, stats.Dropped)
	assert.Equal(t, 1, stats.Unresolved)
	assert.True(t, stats.MarketContext)
	assert.True(t, batch.Capabilities.MarketContext)
}

func TestParseCSVAutoDetectsFeatures(t *testing.T) {
	batch, _ := parse(t, sampleCSV, CSVOptions{})

	assert.Equal(t, []string{"home_form", "away_form"}, batch.FeatureColumns)
	assert.Equal(t, []float64{1.4, 1.1}, batch.Matches[2].Features)
}

func TestParseCSVConfiguredFeatures(t *testing.T) {
	batch, _ := parse(t, sampleCSV, CSVOptions{FeatureColumns: []string{"away_form", "TOTAL_XG"}})

	assert.Equal(t, []string{"away_form", "total_xg"}, batch.FeatureColumns)
	assert.Equal(t, []float64{0.9, 1.9}, batch.Matches[0].Features)

	_, _, err := ParseCSV(strings.NewReader(sampleCSV), CSVOptions{FeatureColumns: []string{"missing"}})
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestParseCSVOutcomes(t *testing.T) {
	batch, _ := parse(t, sampleCSV, CSVOptions{})

	total, ok := batch.Matches[2].TotalCount()
	require.True(t, ok)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2.8, batch.Matches[2].TotalXG)

	assert.False(t, batch.Matches[1].Resolved())
	assert.Equal(t, "L1", batch.Matches[1].GroupKey)
}

func TestParseCSVSteamSignal(t *testing.T) {
	batch, _ := parse(t, sampleCSV, CSVOptions{SteamThreshold: 0.05})

	over := batch.Matches[2].Market
	require.NotNil(t, over)
	assert.InDelta(t, 0.10, over.MomentumOver, 1e-9)
	assert.Less(t, over.MomentumUnder, 0.0)
	assert.Equal(t, models.SignalOver, over.Signal)

	under := batch.Matches[0].Market
	require.NotNil(t, under)
	assert.InDelta(t, 0.2/1.8, under.MomentumUnder, 1e-9)
	assert.Equal(t, models.SignalUnder, under.Signal)

	assert.Equal(t, models.SignalNeutral, batch.Matches[1].Market.Signal)
}

func TestMarketContextUnderWinsTies(t *testing.T) {
	mc := marketContext(models.Odds{OverOpen: 2.0, OverClose: 1.8, UnderOpen: 2.0, UnderClose: 1.8}, 0.05)
	assert.Equal(t, models.SignalUnder, mc.Signal)
}

func TestMomentumUnusablePrices(t *testing.T) {
	assert.Equal(t, 0.0, Momentum(math.NaN(), 1.9))
	assert.Equal(t, 0.0, Momentum(2.0, math.NaN()))
	assert.Equal(t, 0.0, Momentum(0, 1.9))
	assert.InDelta(t, 0.05, Momentum(2.0, 1.9), 1e-12)
}

func TestParseCSVWithoutCloseOddsHasNoMarket(t *testing.T) {
	data := `date,home_team,away_team,home_goals,away_goals,home_xg,away_xg,over25_open_odds,under25_open_odds,rating
2024-02-01,A,B,1,1,1.2,0.9,1.9,1.9,0.5
2024-02-02,C,D,3,0,2.0,0.4,1.7,2.1,0.7
`
	batch, stats := parse(t, data, CSVOptions{})

	assert.False(t, stats.MarketContext)
	assert.False(t, batch.Capabilities.MarketContext)
	assert.Nil(t, batch.Matches[0].Market)
	assert.InDelta(t, 2.1, batch.Matches[0].TotalXG, 1e-12)
	assert.True(t, math.IsNaN(batch.Matches[0].Odds.OverClose))
	assert.Equal(t, []string{"rating"}, batch.FeatureColumns)
}

func TestParseCSVDropsMalformedRows(t *testing.T) {
	data := `date,home_team,away_team,home_goals,away_goals,rating
2024-02-01,A,B,1,1,0.5
not-a-date,C,D,1,0,0.4
2024-02-03,E,F,1.5,0,0.3
2024-02-04,G,H,2,2,
2024-02-05,,J,0,0,0.2
`
	batch, stats := parse(t, data, CSVOptions{})

	assert.Equal(t, 1, batch.Len())
	assert.Equal(t, 4, stats.Dropped)
}

func TestParseCSVStableForEqualDates(t *testing.T) {
	data := `date,home_team,away_team,rating
2024-03-01,First,X,1
2024-03-01,Second,Y,2
2024-02-28,Earlier,Z,3
2024-03-01,Third,W,4
`
	batch, _ := parse(t, data, CSVOptions{})

	var order []string
	for _, m := range batch.Matches {
		order = append(order, m.HomeTeam)
	}
	assert.Equal(t, []string{"Earlier", "First", "Second", "Third"}, order)
}

func TestParseCSVMatchIDs(t *testing.T) {
	withID := "id,date,home_team,away_team,rating\nm-1,2024-01-01,A,B,1\n"
	batch, _ := parse(t, withID, CSVOptions{})
	assert.Equal(t, "m-1", batch.Matches[0].ID)

	withoutID := "date,home_team,away_team,rating\n2024-01-01,A,B,1\n"
	first, _ := parse(t, withoutID, CSVOptions{})
	second, _ := parse(t, withoutID, CSVOptions{})
	assert.NotEmpty(t, first.Matches[0].ID)
	assert.Equal(t, first.Matches[0].ID, second.Matches[0].ID)
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty input", "", models.ErrEmptyDataset},
		{"header only", "date,home_team,away_team,rating\n", models.ErrEmptyDataset},
		{"missing team column", "date,home_team,rating\n2024-01-01,A,1\n", ErrMissingColumn},
		{"no numeric features", "date,home_team,away_team,home_goals,away_goals\n2024-01-01,A,B,1,0\n", ErrNoFeatures},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseCSV(strings.NewReader(tt.data), CSVOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCSVSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	src := NewCSVSource(path, CSVOptions{}, nil)
	assert.Equal(t, "csv", src.Name())

	batch, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"), CSVOptions{}, nil)

	_, err := src.Load(context.Background())
	var dsErr DataSourceError
	require.True(t, errors.As(err, &dsErr))
	assert.Equal(t, ErrCodeNotFound, dsErr.Code)
}
