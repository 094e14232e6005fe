// Package source defines the contract every exchange adapter satisfies and
// the error kinds the runner discriminates on.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/Checker-Finance/sme-deals/internal/sme"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// ErrUnavailable indicates the upstream endpoint could not be reached after
// bounded retries. The runner continues with the other exchange's results.
var ErrUnavailable = errors.New("source unavailable")

// ErrFormat indicates the upstream responded but the payload did not match
// the expected schema (endpoint drift). The source's records are skipped for
// this run rather than silently mis-mapped.
var ErrFormat = errors.New("source format unrecognized")

// Source fetches raw block/bulk deal disclosures for a date window and
// normalizes them into DealRecords.
type Source interface {
	// Exchange identifies which exchange this adapter covers.
	Exchange() model.Exchange

	// Fetch returns all block/bulk deals disclosed between from and to
	// (inclusive, date-only). Fails with ErrUnavailable or ErrFormat.
	Fetch(ctx context.Context, from, to time.Time) ([]model.DealRecord, error)

	// SMEMembers returns the exchange's known SME symbol set, best-effort.
	// An empty set degrades classification to the shape heuristic; it never
	// fails the run.
	SMEMembers(ctx context.Context) sme.Members
}
