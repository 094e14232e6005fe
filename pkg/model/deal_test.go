package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal fixture %q: %v", s, err)
	}
	return d
}

func baseRecord(t *testing.T) DealRecord {
	return DealRecord{
		Exchange:   ExchangeNSE,
		DealType:   DealBlock,
		TradeDate:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Symbol:     "XYZSME",
		ClientName: "Acme Capital LLP",
		Quantity:   mustDecimal(t, "1000"),
		Price:      mustDecimal(t, "50.0"),
	}
}

// ─── Fingerprint stability ───────────────────────────────────────────────────

func TestFingerprint_StableAcrossFormatting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DealRecord)
	}{
		{"identical copy", func(r *DealRecord) {}},
		{"symbol lowercase", func(r *DealRecord) { r.Symbol = "xyzsme" }},
		{"client extra spaces", func(r *DealRecord) { r.ClientName = "  Acme   Capital LLP " }},
		{"client lowercase", func(r *DealRecord) { r.ClientName = "acme capital llp" }},
		{"price trailing zeros", func(r *DealRecord) { r.Price = mustDecimal(t, "50.00") }},
		{"price integer form", func(r *DealRecord) { r.Price = mustDecimal(t, "50") }},
		{"quantity trailing zeros", func(r *DealRecord) { r.Quantity = mustDecimal(t, "1000.000") }},
		{"trade date with time-of-day", func(r *DealRecord) {
			r.TradeDate = time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)
		}},
		{"security name differs", func(r *DealRecord) { r.SecurityName = "XYZ Industries Ltd" }},
		{"side differs", func(r *DealRecord) { r.Side = SideBuy }},
	}

	base := baseRecord(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := baseRecord(t)
			tt.mutate(&other)
			assert.Equal(t, base.Fingerprint(), other.Fingerprint())
		})
	}
}

func TestFingerprint_DistinguishesBusinessFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DealRecord)
	}{
		{"different exchange", func(r *DealRecord) { r.Exchange = ExchangeBSE }},
		{"different deal type", func(r *DealRecord) { r.DealType = DealBulk }},
		{"different date", func(r *DealRecord) {
			r.TradeDate = time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
		}},
		{"different symbol", func(r *DealRecord) { r.Symbol = "ABCSME" }},
		{"different client", func(r *DealRecord) { r.ClientName = "Other Trading Co" }},
		{"different quantity", func(r *DealRecord) { r.Quantity = mustDecimal(t, "1001") }},
		{"different price", func(r *DealRecord) { r.Price = mustDecimal(t, "50.05") }},
	}

	base := baseRecord(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := baseRecord(t)
			tt.mutate(&other)
			assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
		})
	}
}

func TestNotional(t *testing.T) {
	r := baseRecord(t)
	assert.True(t, r.Notional().Equal(mustDecimal(t, "50000")),
		"expected 1000 × 50.0 = 50000, got %s", r.Notional())
}
