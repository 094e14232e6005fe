package bse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/source"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// Date layouts BSE has been observed to ship, most common first.
var bseDateLayouts = []string{
	"02/01/2006",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-01-2006",
}

// Mapper translates BSE payloads into canonical DealRecords.
type Mapper struct {
	logger *zap.Logger
}

func NewMapper(logger *zap.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// MapDeals decodes one day's envelope and normalizes each row. day is the
// requested date, used when a row omits its own date field (the endpoint is
// day-wise, so the date is implied).
//
// A missing Table/Data member is endpoint drift → source.ErrFormat. Bad rows
// inside a healthy batch are skipped with a warn log; a non-empty batch where
// every row fails is rejected wholesale.
func (m *Mapper) MapDeals(env *tableEnvelope, dealType model.DealType, day time.Time) ([]model.DealRecord, error) {
	raw := env.rows()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: bse %s deals: missing Table member", source.ErrFormat, dealType)
	}

	var rows []rawDeal
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: bse %s deals: Table is not an array: %v", source.ErrFormat, dealType, err)
	}

	records := make([]model.DealRecord, 0, len(rows))
	failed := 0
	for i, row := range rows {
		rec, err := m.mapRow(row, dealType, day)
		if err != nil {
			failed++
			m.logger.Warn("bse.row_skipped",
				zap.Int("row", i),
				zap.String("deal_type", string(dealType)),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if len(rows) > 0 && len(records) == 0 {
		return nil, fmt.Errorf("%w: bse %s deals: all %d rows failed mapping", source.ErrFormat, dealType, failed)
	}
	return records, nil
}

func (m *Mapper) mapRow(row rawDeal, dealType model.DealType, day time.Time) (model.DealRecord, error) {
	symbol := firstNonEmpty(row.Security, row.ScripName, row.Scripname)
	if symbol == "" {
		return model.DealRecord{}, fmt.Errorf("no security field")
	}

	date := day.UTC()
	if s := firstNonEmpty(row.Date, row.DealDate); s != "" {
		parsed, err := parseBSEDate(s)
		if err != nil {
			return model.DealRecord{}, err
		}
		date = parsed
	}

	qty, err := parseDecimalField("quantity", row.Qty, row.Quantity)
	if err != nil {
		return model.DealRecord{}, err
	}
	price, err := parseDecimalField("price", row.Price, row.DealPrice)
	if err != nil {
		return model.DealRecord{}, err
	}
	if qty.IsNegative() || price.IsNegative() {
		return model.DealRecord{}, fmt.Errorf("negative quantity or price")
	}

	return model.DealRecord{
		Exchange:   model.ExchangeBSE,
		DealType:   dealType,
		TradeDate:  date,
		Symbol:     strings.TrimSpace(symbol),
		ClientName: strings.TrimSpace(firstNonEmpty(row.ClientName, row.BuyerName)),
		Quantity:   qty,
		Price:      price,
		Side:       normalizeSide(row.DealFlag),
	}, nil
}

// ParseScripList extracts SME segment symbols from a ListofScripData envelope.
func (m *Mapper) ParseScripList(env *tableEnvelope) ([]string, error) {
	raw := env.rows()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: bse scrip list: missing Table member", source.ErrFormat)
	}

	var rows []rawScrip
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: bse scrip list: Table is not an array: %v", source.ErrFormat, err)
	}

	var symbols []string
	for _, row := range rows {
		if sym := strings.TrimSpace(firstNonEmpty(row.SecurityID, row.ScripCd, row.Symbol)); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}

func parseBSEDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range bseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

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
	case "B", "BUY", "P": // BSE marks purchases "P"
		return model.SideBuy
	case "S", "SELL":
		return model.SideSell
	default:
		return ""
	}
}
