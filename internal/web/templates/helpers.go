// Package templates renders the HTML pages and HTMX partials of the web UI.
// Components are written in the .templ files; the _templ.go files are
// generated from them with `templ generate`.
package templates

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

const baseCSS = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2937}` +
	`.nav{display:flex;gap:1rem;align-items:center;padding:.75rem 1.5rem;background:#1e3a8a}` +
	`.nav a,.nav .who{color:#fff;text-decoration:none}.nav .brand{font-weight:700}.spacer{flex:1}` +
	`main{padding:1.5rem;max-width:72rem;margin:0 auto}` +
	`table{width:100%;border-collapse:collapse}th,td{padding:.4rem .6rem;border-bottom:1px solid #e5e7eb;text-align:left}` +
	`tr.flagged{background:#fef3c7}.num{text-align:right}.inline{display:inline}` +
	`.alert{padding:.75rem 1rem;border-radius:.375rem;margin:.75rem 0}` +
	`.alert-error{background:#fee2e2;color:#991b1b}.alert-ok{background:#dcfce7;color:#166534}` +
	`.alert-warn{background:#fef9c3;color:#854d0e}.muted{color:#6b7280}` +
	`h1 .alert-warn,.alert span{margin-left:.5rem}` +
	`.cards{display:flex;gap:1rem}.card{flex:1;padding:1rem;border:1px solid #e5e7eb;border-radius:.5rem}` +
	`.card .value{font-size:1.75rem;font-weight:700}.pager{display:flex;gap:1rem;align-items:center;margin-top:1rem}` +
	`pre.report{background:#f9fafb;padding:1rem;white-space:pre-wrap}`

func itoa[T ~int | ~int64](n T) string {
	return strconv.FormatInt(int64(n), 10)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func dateOnly(t time.Time) string {
	return t.Format(time.DateOnly)
}

func claimURL(id int64) string {
	return fmt.Sprintf("/claims/%d", id)
}

func flagURL(id int64, view string) string {
	return withQuery(claimURL(id)+"/flag", "view", view)
}

func notesURL(id int64) string {
	return claimURL(id) + "/notes"
}

// pageURL links to page n of the list, keeping the current filter.
func pageURL(page core.ClaimPage, n int) string {
	return withQuery("/claims",
		"search", page.Filter.Search,
		"status", page.Filter.Status,
		"page", itoa(n))
}

func flagLabel(c core.Claim) string {
	if c.Flagged {
		return "Unflag"
	}
	return "Flag"
}

func authorName(n core.Note) string {
	if n.AuthorName == "" {
		return "unknown"
	}
	return n.AuthorName
}

func noteTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// withQuery returns path with the non-empty values appended as a query.
func withQuery(path string, kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
