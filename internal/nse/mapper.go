package nse

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/source"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// Date layouts NSE has been observed to ship, most common first.
var nseDateLayouts = []string{
	"02-Jan-2006",
	"02-01-2006",
	"2006-01-02",
}

// Mapper translates NSE payloads into canonical DealRecords.
type Mapper struct {
	logger *zap.Logger
}

func NewMapper(logger *zap.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// MapDeals decodes an envelope's data array and normalizes each row.
//
// A missing or non-array data field is endpoint drift → source.ErrFormat.
// Individually malformed rows inside a healthy batch are skipped with a warn
// log; if every row of a non-empty batch fails, the schema has drifted and
// the whole batch is rejected rather than silently dropped.
func (m *Mapper) MapDeals(env *dealsEnvelope, dealType model.DealType) ([]model.DealRecord, error) {
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: nse %s deals: missing data array", source.ErrFormat, dealType)
	}

	var rows []rawDeal
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("%w: nse %s deals: data is not an array: %v", source.ErrFormat, dealType, err)
	}

	records := make([]model.DealRecord, 0, len(rows))
	failed := 0
	for i, row := range rows {
		rec, err := m.mapRow(row, dealType)
		if err != nil {
			failed++
			m.logger.Warn("nse.row_skipped",
				zap.Int("row", i),
				zap.String("deal_type", string(dealType)),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if len(rows) > 0 && len(records) == 0 {
		return nil, fmt.Errorf("%w: nse %s deals: all %d rows failed mapping", source.ErrFormat, dealType, failed)
	}
	return records, nil
}

func (m *Mapper) mapRow(row rawDeal, dealType model.DealType) (model.DealRecord, error) {
	symbol := firstNonEmpty(row.Symbol, row.ScripName, row.Security)
	if symbol == "" {
		return model.DealRecord{}, fmt.Errorf("no symbol field")
	}

	date, err := parseNSEDate(firstNonEmpty(row.Date, row.Dt, row.DealDate))
	if err != nil {
		return model.DealRecord{}, err
	}

	qty, err := parseDecimalField("quantity", row.QuantityTraded, row.Qty, row.Quantity)
	if err != nil {
		return model.DealRecord{}, err
	}
	price, err := parseDecimalField("price", row.PricePerShare, row.Price, row.WAvgPrice)
	if err != nil {
		return model.DealRecord{}, err
	}
	if qty.IsNegative() || price.IsNegative() {
		return model.DealRecord{}, fmt.Errorf("negative quantity or price")
	}

	return model.DealRecord{
		Exchange:     model.ExchangeNSE,
		DealType:     dealType,
		TradeDate:    date,
		Symbol:       strings.TrimSpace(symbol),
		SecurityName: strings.TrimSpace(firstNonEmpty(row.SecurityName, row.CompanyName)),
		ClientName:   strings.TrimSpace(firstNonEmpty(row.ClientName, row.BuyerName, row.Buyer)),
		Quantity:     qty,
		Price:        price,
		Side:         normalizeSide(row.BuySell),
	}, nil
}

// ParseSymbolMaster extracts SME symbols (series SM/ST/SZ) from EQUITY_L.csv.
func (m *Mapper) ParseSymbolMaster(csvText string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(csvText))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: nse symbol master: %v", source.ErrFormat, err)
	}

	symbolIdx, seriesIdx := -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "SYMBOL":
			symbolIdx = i
		case "SERIES":
			seriesIdx = i
		}
	}
	if symbolIdx < 0 || seriesIdx < 0 {
		return nil, fmt.Errorf("%w: nse symbol master: SYMBOL/SERIES columns not found", source.ErrFormat)
	}

	var symbols []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: nse symbol master: %v", source.ErrFormat, err)
		}
		if symbolIdx >= len(rec) || seriesIdx >= len(rec) {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(rec[seriesIdx])) {
		case "SM", "ST", "SZ":
			if sym := strings.TrimSpace(rec[symbolIdx]); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	}
	return symbols, nil
}

func parseNSEDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("no date field")
	}
	// Some revisions append a time-of-day; the date prefix is enough.
	if len(s) > 11 {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), nil
		}
	}
	for _, layout := range nseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseDecimalField takes the first present alternate and parses it as a
// decimal, tolerating quoted strings and thousands separators.
func parseDecimalField(name string, alternates ...json.RawMessage) (decimal.Decimal, error) {
	for _, raw := range alternates {
		text := rawText(raw)
		if text == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad %s %q", name, text)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("no %s field", name)
}

// rawText renders a raw JSON scalar as its text content: quoted strings are
// unquoted, numbers returned verbatim, null/absent become "".
func rawText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return ""
		}
		return strings.TrimSpace(unquoted)
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalizeSide(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B":
		return model.SideBuy
	case "SELL", "S":
		return model.SideSell
	default:
		return ""
	}
}
