// Package sme classifies whether a security belongs to an exchange's SME
// listing segment. Classification is best-effort: neither exchange exposes an
// authoritative SME membership list alongside its deal disclosures, so when a
// symbol master could not be fetched we fall back to symbol-shape heuristics.
package sme

import (
	"strings"

	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// Members is the set of known SME symbols for one exchange, keyed by
// upper-cased symbol. An empty or nil set means membership is unknown and the
// shape heuristic decides.
type Members map[string]struct{}

// NewMembers builds a membership set from raw symbol strings.
func NewMembers(symbols []string) Members {
	m := make(Members, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			m[s] = struct{}{}
		}
	}
	return m
}

// IsSME reports whether the symbol belongs to the SME board of the given
// exchange. Pure and deterministic: same inputs always produce the same
// answer, so dedupe state and tests stay stable. Never errors.
func IsSME(exchange model.Exchange, symbol string, members Members) bool {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return false
	}

	if len(members) > 0 {
		_, ok := members[sym]
		return ok
	}

	switch exchange {
	case model.ExchangeNSE:
		// SME listings trade in the SM/ST series; deal feeds sometimes carry
		// the series as a symbol suffix.
		return strings.HasSuffix(sym, "-SM") ||
			strings.HasSuffix(sym, "-ST") ||
			strings.HasSuffix(sym, "SME")
	case model.ExchangeBSE:
		return strings.HasSuffix(sym, "SME")
	default:
		return false
	}
}
