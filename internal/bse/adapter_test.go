package bse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/rate"
	"github.com/Checker-Finance/sme-deals/internal/source"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rateMgr := rate.NewManager(rate.Config{RequestsPerSecond: 100, Burst: 100})
	client := NewClient(zap.NewNop(), srv.URL, rateMgr, 5*time.Second)
	return NewAdapter(zap.NewNop(), client, time.Hour)
}

func TestFetch_IteratesLookbackDays(t *testing.T) {
	seenDates := map[string]int{}

	mux := http.NewServeMux()
	mux.HandleFunc("/BseIndiaAPI/api/MktWatchBulkDealData/w", func(w http.ResponseWriter, r *http.Request) {
		seenDates[r.URL.Query().Get("strDate")]++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Table":[{"Security":"ACMESME","Qty":100,"Price":10}]}`))
	})

	adapter := newTestAdapter(t, mux)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	records, err := adapter.Fetch(context.Background(), from, to)

	require.NoError(t, err)
	// 3 days × 2 deal types.
	assert.Len(t, records, 6)
	assert.Equal(t, 2, seenDates["20250601"])
	assert.Equal(t, 2, seenDates["20250602"])
	assert.Equal(t, 2, seenDates["20250603"])
}

func TestFetch_AllCallsFailingSurfacesUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	adapter := newTestAdapter(t, mux)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	_, err := adapter.Fetch(context.Background(), day, day)

	assert.ErrorIs(t, err, source.ErrUnavailable)
}

func TestFetch_PartialDayFailureTolerated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/BseIndiaAPI/api/MktWatchBulkDealData/w", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("strType") == "BL" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Table":[{"Security":"ACMESME","Qty":100,"Price":10}]}`))
	})

	adapter := newTestAdapter(t, mux)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	records, err := adapter.Fetch(context.Background(), day, day)

	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSMEMembers_CachedBetweenCalls(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/BseIndiaAPI/api/ListofScripData/w", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Table":[{"SecurityId":"ACMESME"}]}`))
	})

	adapter := newTestAdapter(t, mux)
	ctx := context.Background()

	first := adapter.SMEMembers(ctx)
	second := adapter.SMEMembers(ctx)

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, calls, "scrip list should be cached")
}

func TestSMEMembers_FailureDegradesToEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	adapter := newTestAdapter(t, mux)

	members := adapter.SMEMembers(context.Background())

	assert.Empty(t, members)
}
