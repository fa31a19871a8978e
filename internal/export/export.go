package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format      ExportFormat
	StartTime   time.Time
	EndTime     time.Time
	TokenFilter string // token address
	SideFilter  string // buy or sell
	VenueFilter string // curve or pair
	OutputDir   string
}

// TradeExporter writes recorded trades to files.
type TradeExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger,
		now:    time.Now,
	}
}

// ExportTrades filters trades, sorts them by block time and writes them to a
// new file under options.OutputDir. It returns the file path.
func (te *TradeExporter) ExportTrades(trades []*models.Trade, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].BlockTime.Equal(filtered[j].BlockTime) {
			return filtered[i].TxID < filtered[j].TxID
		}
		return filtered[i].BlockTime.Before(filtered[j].BlockTime)
	})

	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, te.generateFilename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func side(t *models.Trade) string {
	if t.IsBuy {
		return "buy"
	}
	return "sell"
}

func (te *TradeExporter) filterTrades(trades []*models.Trade, options ExportOptions) []*models.Trade {
	var filtered []*models.Trade
	for _, trade := range trades {
		if !options.StartTime.IsZero() && trade.BlockTime.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && trade.BlockTime.After(options.EndTime) {
			continue
		}
		if options.TokenFilter != "" && trade.Token != options.TokenFilter {
			continue
		}
		if options.SideFilter != "" && side(trade) != options.SideFilter {
			continue
		}
		if options.VenueFilter != "" && trade.Venue != options.VenueFilter {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered
}

func (te *TradeExporter) generateFilename(options ExportOptions) string {
	prefix := "trades_all"
	if options.SideFilter != "" {
		prefix = "trades_" + options.SideFilter
	}
	if len(options.TokenFilter) >= 8 {
		prefix += "_" + options.TokenFilter[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, te.now().Format("20060102_150405"), options.Format)
}

// CSVHeaders returns the column names of the CSV export.
func CSVHeaders() []string {
	return []string{"tx_id", "block_time", "venue", "token", "side", "trader", "recipient", "amount_in", "amount_out", "tax", "price"}
}

func csvRow(t *models.Trade) []string {
	return []string{
		strconv.FormatUint(t.TxID, 10),
		t.BlockTime.UTC().Format(time.RFC3339),
		t.Venue,
		t.Token,
		side(t),
		t.Trader,
		t.Recipient,
		units(t.AmountIn),
		units(t.AmountOut),
		units(t.Tax),
		strconv.FormatFloat(t.Price, 'g', -1, 64),
	}
}

// units renders a raw integer string as a decimal token amount.
func units(raw string) string {
	x, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return types.FormatUnits(x)
}

func (te *TradeExporter) exportToCSV(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, trade := range trades {
		if err := writer.Write(csvRow(trade)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// exportedTrade is the JSON shape of a trade, amounts in whole tokens.
type exportedTrade struct {
	TxID      uint64    `json:"tx_id"`
	BlockTime time.Time `json:"block_time"`
	Venue     string    `json:"venue"`
	Token     string    `json:"token"`
	Side      string    `json:"side"`
	Trader    string    `json:"trader"`
	Recipient string    `json:"recipient"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	Tax       string    `json:"tax"`
	Price     float64   `json:"price"`
}

func (te *TradeExporter) exportToJSON(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	rows := make([]exportedTrade, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, exportedTrade{
			TxID:      t.TxID,
			BlockTime: t.BlockTime,
			Venue:     t.Venue,
			Token:     t.Token,
			Side:      side(t),
			Trader:    t.Trader,
			Recipient: t.Recipient,
			AmountIn:  units(t.AmountIn),
			AmountOut: units(t.AmountOut),
			Tax:       units(t.Tax),
			Price:     t.Price,
		})
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	exportData := struct {
		ExportTime time.Time       `json:"export_time"`
		TradeCount int             `json:"trade_count"`
		Trades     []exportedTrade `json:"trades"`
		Summary    ExportSummary   `json:"summary"`
	}{
		ExportTime: te.now(),
		TradeCount: len(trades),
		Trades:     rows,
		Summary:    Summarize(trades),
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains summary statistics for exported trades
type ExportSummary struct {
	TotalTrades  int       `json:"total_trades"`
	BuyCount     int       `json:"buy_count"`
	SellCount    int       `json:"sell_count"`
	CurveTrades  int       `json:"curve_trades"`
	PairTrades   int       `json:"pair_trades"`
	UniqueTokens int       `json:"unique_tokens"`
	AssetIn      string    `json:"asset_in"`
	AssetOut     string    `json:"asset_out"`
	TaxPaid      string    `json:"tax_paid"`
	LastPrice    float64   `json:"last_price"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// Summarize aggregates trades sorted by block time. Buy inputs and sell outputs
// are in the reserve asset; tax is summed in whatever leg it was charged on.
func Summarize(trades []*models.Trade) ExportSummary {
	summary := ExportSummary{TotalTrades: len(trades), AssetIn: "0", AssetOut: "0", TaxPaid: "0"}
	if len(trades) == 0 {
		return summary
	}
	summary.StartDate = trades[0].BlockTime
	summary.EndDate = trades[len(trades)-1].BlockTime
	summary.LastPrice = trades[len(trades)-1].Price

	assetIn, assetOut, tax := new(big.Int), new(big.Int), new(big.Int)
	tokens := make(map[string]struct{})
	for _, t := range trades {
		tokens[t.Token] = struct{}{}
		if t.Venue == models.VenueCurve {
			summary.CurveTrades++
		} else {
			summary.PairTrades++
		}
		if t.IsBuy {
			summary.BuyCount++
			addRaw(assetIn, t.AmountIn)
		} else {
			summary.SellCount++
			addRaw(assetOut, t.AmountOut)
		}
		addRaw(tax, t.Tax)
	}
	summary.UniqueTokens = len(tokens)
	summary.AssetIn = types.FormatUnits(assetIn)
	summary.AssetOut = types.FormatUnits(assetOut)
	summary.TaxPaid = types.FormatUnits(tax)
	return summary
}

func addRaw(sum *big.Int, raw string) {
	if x, ok := new(big.Int).SetString(raw, 10); ok {
		sum.Add(sum, x)
	}
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int `json:"hour"`
	TradeCount int `json:"trade_count"`
	BuyCount   int `json:"buy_count"`
	SellCount  int `json:"sell_count"`
}

// HourlyBreakdown counts trades per UTC hour, skipping empty hours.
func HourlyBreakdown(trades []*models.Trade) []HourlyStats {
	var hours [24]HourlyStats
	for _, t := range trades {
		h := &hours[t.BlockTime.UTC().Hour()]
		h.TradeCount++
		if t.IsBuy {
			h.BuyCount++
		} else {
			h.SellCount++
		}
	}
	var breakdown []HourlyStats
	for hour := range hours {
		if hours[hour].TradeCount == 0 {
			continue
		}
		hours[hour].Hour = hour
		breakdown = append(breakdown, hours[hour])
	}
	return breakdown
}
