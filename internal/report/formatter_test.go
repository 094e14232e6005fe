package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/sme-deals/pkg/model"
)

var (
	from = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
)

func deal(exchange model.Exchange, dealType model.DealType, symbol string, day int, qty int64) model.DealRecord {
	return model.DealRecord{
		Exchange:   exchange,
		DealType:   dealType,
		TradeDate:  time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
		Symbol:     symbol,
		ClientName: "Acme Capital",
		Quantity:   decimal.NewFromInt(qty),
		Price:      decimal.NewFromInt(50),
	}
}

func TestGroup_SectionOrderAndSorting(t *testing.T) {
	records := []model.DealRecord{
		deal(model.ExchangeBSE, model.DealBulk, "BB1", 1, 10),
		deal(model.ExchangeNSE, model.DealBulk, "NK1", 1, 10),
		deal(model.ExchangeNSE, model.DealBlock, "NB-OLD", 1, 10),
		deal(model.ExchangeNSE, model.DealBlock, "NB-NEW", 2, 10),
		deal(model.ExchangeNSE, model.DealBlock, "NB-BIG", 1, 500),
	}

	sections := Group(records, 20)

	require.Len(t, sections, 3)
	assert.Equal(t, "NSE — Block Deals", sections[0].Title)
	assert.Equal(t, "NSE — Bulk Deals", sections[1].Title)
	assert.Equal(t, "BSE — Bulk Deals", sections[2].Title)

	// Within a section: newest date first, then larger notional first.
	blockSymbols := []string{sections[0].Rows[0].Symbol, sections[0].Rows[1].Symbol, sections[0].Rows[2].Symbol}
	assert.Equal(t, []string{"NB-NEW", "NB-BIG", "NB-OLD"}, blockSymbols)
}

func TestGroup_Truncation(t *testing.T) {
	var records []model.DealRecord
	for i := 0; i < 25; i++ {
		records = append(records, deal(model.ExchangeNSE, model.DealBlock, fmt.Sprintf("SYM%02d", i), 2, int64(i+1)))
	}

	sections := Group(records, 20)

	require.Len(t, sections, 1)
	assert.Len(t, sections[0].Rows, 20)
	assert.Equal(t, 5, sections[0].Omitted)
}

func TestRender_TruncationMarker(t *testing.T) {
	var records []model.DealRecord
	for i := 0; i < 25; i++ {
		records = append(records, deal(model.ExchangeNSE, model.DealBlock, fmt.Sprintf("SYM%02d", i), 2, int64(i+1)))
	}

	text := Render(records, from, to, 20, nil)

	assert.Contains(t, text, "… and 5 more")
	assert.Equal(t, 20, strings.Count(text, "• "), "exactly 20 rows rendered")
}

func TestRender_EmptyRunStillSpeaks(t *testing.T) {
	text := Render(nil, from, to, 20, nil)

	assert.Contains(t, text, "No new SME block/bulk deals.")
	assert.Contains(t, text, "2025-06-01 to 2025-06-02")
}

func TestRender_EscapesUntrustedNames(t *testing.T) {
	rec := deal(model.ExchangeNSE, model.DealBlock, "XYZSME", 2, 100)
	rec.ClientName = `<script>alert("x")</script> & Co`

	text := Render([]model.DealRecord{rec}, from, to, 20, nil)

	assert.NotContains(t, text, "<script>")
	assert.Contains(t, text, "&lt;script&gt;")
	assert.Contains(t, text, "&amp; Co")
}

func TestRender_WarningsAppended(t *testing.T) {
	text := Render(nil, from, to, 20, []string{"NSE fetch failed: timeout"})

	assert.Contains(t, text, "Warnings:")
	assert.Contains(t, text, "NSE fetch failed: timeout")
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("hello\nworld", 4096)
	assert.Equal(t, []string{"hello\nworld"}, chunks)
}

func TestSplit_NeverBreaksLines(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, fmt.Sprintf("• 2025-06-02 | SYM%03d | qty 1000 @ 50 | Acme Capital", i))
	}
	text := strings.Join(lines, "\n")

	chunks := Split(text, 500)

	require.Greater(t, len(chunks), 1)
	var reassembled []string
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 500)
		reassembled = append(reassembled, strings.Split(chunk, "\n")...)
	}
	assert.Equal(t, lines, reassembled, "every line must survive splitting intact")
}

func TestSplit_OverlongLineTruncated(t *testing.T) {
	long := strings.Repeat("x", 600)

	chunks := Split(long, 500)

	require.Len(t, chunks, 1)
	assert.LessOrEqual(t, len([]rune(chunks[0])), 500)
	assert.True(t, strings.HasSuffix(chunks[0], "…"))
}
