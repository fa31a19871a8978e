package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

const tokenA = "AgentToken1111111111111111111111111111111111"

func testTrades() []*models.Trade {
	return []*models.Trade{
		{TxID: 3, Venue: models.VenuePair, Token: tokenA, IsBuy: false,
			AmountIn: types.Tokens(50).String(), AmountOut: types.Tokens(2).String(), Tax: "0", BlockTime: base.Add(2 * time.Hour), Price: 0.04},
		{TxID: 1, Venue: models.VenueCurve, Token: tokenA, IsBuy: true,
			AmountIn: types.Tokens(100).String(), AmountOut: types.Tokens(900).String(), Tax: types.Tokens(1).String(), BlockTime: base, Price: 0.1},
		{TxID: 2, Venue: models.VenueCurve, Token: "other", IsBuy: true,
			AmountIn: types.MustParseUnits("0.5").String(), AmountOut: "1", Tax: "0", BlockTime: base.Add(time.Minute)},
	}
}

func newExporter(t *testing.T) *TradeExporter {
	te := NewTradeExporter(zaptest.NewLogger(t))
	te.now = func() time.Time { return base }
	return te
}

func TestExportCSVFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	path, err := newExporter(t).ExportTrades(testTrades(), ExportOptions{
		Format: FormatCSV, OutputDir: dir, TokenFilter: tokenA,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trades_all_AgentTok_20240301_100000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeaders(), rows[0])
	assert.Equal(t, []string{"1", "2024-03-01T10:00:00Z", "curve", tokenA, "buy"}, rows[1][:5])
	assert.Equal(t, "100", rows[1][7])
	assert.Equal(t, "sell", rows[2][4])
}

func TestExportJSONSummary(t *testing.T) {
	path, err := newExporter(t).ExportTrades(testTrades(), ExportOptions{Format: FormatJSON, OutputDir: t.TempDir()})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TradeCount int           `json:"trade_count"`
		Summary    ExportSummary `json:"summary"`
		Trades     []struct {
			TxID     uint64 `json:"tx_id"`
			AmountIn string `json:"amount_in"`
		} `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.TradeCount)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{doc.Trades[0].TxID, doc.Trades[1].TxID, doc.Trades[2].TxID})
	assert.Equal(t, "0.5", doc.Trades[1].AmountIn)

	s := doc.Summary
	assert.Equal(t, 2, s.BuyCount)
	assert.Equal(t, 1, s.SellCount)
	assert.Equal(t, 2, s.CurveTrades)
	assert.Equal(t, 1, s.PairTrades)
	assert.Equal(t, 2, s.UniqueTokens)
	assert.Equal(t, "100.5", s.AssetIn)
	assert.Equal(t, "2", s.AssetOut)
	assert.Equal(t, "1", s.TaxPaid)
	assert.InDelta(t, 0.04, s.LastPrice, 1e-12)
}

func TestExportRejections(t *testing.T) {
	te := newExporter(t)
	_, err := te.ExportTrades(testTrades(), ExportOptions{Format: FormatCSV, OutputDir: t.TempDir(), SideFilter: "sell", VenueFilter: models.VenueCurve})
	assert.Error(t, err)

	_, err = te.ExportTrades(testTrades(), ExportOptions{Format: "xml", OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported format"))
}

func TestHourlyBreakdown(t *testing.T) {
	got := HourlyBreakdown(testTrades())
	assert.Equal(t, []HourlyStats{
		{Hour: 10, TradeCount: 2, BuyCount: 2},
		{Hour: 12, TradeCount: 1, SellCount: 1},
	}, got)
}
