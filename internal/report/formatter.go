// Package report renders deduplicated deal records into Telegram-ready text.
// Company and client names come from external sources and are treated as
// untrusted: everything upstream-sourced is HTML-escaped.
package report

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// Section is one exchange + deal type grouping of the report.
type Section struct {
	Title   string
	Rows    []model.DealRecord
	Omitted int
}

// sectionOrder fixes the display order of the report.
var sectionOrder = []struct {
	exchange model.Exchange
	dealType model.DealType
	title    string
}{
	{model.ExchangeNSE, model.DealBlock, "NSE — Block Deals"},
	{model.ExchangeNSE, model.DealBulk, "NSE — Bulk Deals"},
	{model.ExchangeBSE, model.DealBlock, "BSE — Block Deals"},
	{model.ExchangeBSE, model.DealBulk, "BSE — Bulk Deals"},
}

// Group buckets records into display sections, sorts each section by trade
// date descending then notional descending, and truncates to maxRows.
func Group(records []model.DealRecord, maxRows int) []Section {
	buckets := make(map[string][]model.DealRecord)
	for _, rec := range records {
		key := string(rec.Exchange) + "|" + string(rec.DealType)
		buckets[key] = append(buckets[key], rec)
	}

	var sections []Section
	for _, def := range sectionOrder {
		rows := buckets[string(def.exchange)+"|"+string(def.dealType)]
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].TradeDate.Equal(rows[j].TradeDate) {
				return rows[i].TradeDate.After(rows[j].TradeDate)
			}
			return rows[i].Notional().GreaterThan(rows[j].Notional())
		})

		omitted := 0
		if maxRows > 0 && len(rows) > maxRows {
			omitted = len(rows) - maxRows
			rows = rows[:maxRows]
		}
		sections = append(sections, Section{Title: def.title, Rows: rows, Omitted: omitted})
	}
	return sections
}

// Render produces the full report text (Telegram HTML parse mode). A run with
// no new records still renders an explicit message so operators can tell a
// quiet market from a dead cron job. warnings carries per-source fetch
// diagnostics, mirrored into the report footer.
func Render(records []model.DealRecord, from, to time.Time, maxRows int, warnings []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>SME block/bulk deal scan</b> (%s to %s)\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	if len(records) == 0 {
		b.WriteString("\nNo new SME block/bulk deals.\n")
	} else {
		for _, section := range Group(records, maxRows) {
			b.WriteString("\n<b>" + html.EscapeString(section.Title) + "</b>\n")
			for _, row := range section.Rows {
				b.WriteString(renderRow(row))
			}
			if section.Omitted > 0 {
				fmt.Fprintf(&b, "… and %d more\n", section.Omitted)
			}
		}
	}

	if len(warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range warnings {
			b.WriteString("• " + html.EscapeString(w) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderRow emits one deal as a single line; Split relies on rows never
// containing embedded newlines.
func renderRow(r model.DealRecord) string {
	line := fmt.Sprintf("• %s | %s | qty %s @ %s",
		r.TradeDate.Format("2006-01-02"),
		html.EscapeString(r.Symbol),
		r.Quantity.String(),
		r.Price.String())
	if r.ClientName != "" {
		line += " | " + html.EscapeString(r.ClientName)
	}
	if r.Side != "" {
		line += " (" + r.Side + ")"
	}
	return line + "\n"
}

// Split breaks text into chunks of at most limit runes, only ever at line
// boundaries so a row or section title is never split across two messages.
// A single line longer than the limit is hard-truncated rather than wrapped.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		if len(runes) > limit {
			runes = runes[:limit-1]
			line = string(runes) + "…"
		}

		lineLen := len([]rune(line))
		// +1 for the joining newline.
		if currentLen > 0 && currentLen+1+lineLen > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteString("\n")
			currentLen++
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
