package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange identifies the upstream stock exchange a deal was disclosed on.
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// DealType distinguishes block deals (privately negotiated, reported off
// order book) from bulk deals (aggregated large-quantity broker disclosures).
type DealType string

const (
	DealBlock DealType = "BLOCK"
	DealBulk  DealType = "BULK"
)

// Deal side, when the source discloses it. Empty when unknown.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// DealRecord is the unified representation of a single block/bulk deal
// disclosure, normalized from either exchange's raw payload. Records are
// immutable after construction.
type DealRecord struct {
	Exchange     Exchange        `json:"exchange"`
	DealType     DealType        `json:"deal_type"`
	TradeDate    time.Time       `json:"trade_date"` // date-only, UTC
	Symbol       string          `json:"symbol"`
	SecurityName string          `json:"security_name,omitempty"`
	ClientName   string          `json:"client_name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Side         string          `json:"side,omitempty"`
}

// Fingerprint returns the stable dedupe identity for the record: a sha256
// hex digest over (exchange, deal type, trade date, symbol, client name,
// quantity, price). Business fields only: upstream row IDs are not stable
// across sources. Symbol and client name are case/whitespace-insensitive,
// quantity and price compare numerically ("50.00" and "50" collide).
func (r DealRecord) Fingerprint() string {
	canonical := strings.Join([]string{
		string(r.Exchange),
		string(r.DealType),
		r.TradeDate.UTC().Format("2006-01-02"),
		normalizeText(r.Symbol),
		normalizeText(r.ClientName),
		canonicalDecimal(r.Quantity),
		canonicalDecimal(r.Price),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Notional returns quantity × price, used for value ordering in reports.
func (r DealRecord) Notional() decimal.Decimal {
	return r.Quantity.Mul(r.Price)
}

// normalizeText upper-cases and collapses internal whitespace so that
// incidental source formatting does not change the fingerprint.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// canonicalDecimal renders a decimal without trailing fractional zeros.
func canonicalDecimal(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
