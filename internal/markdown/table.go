// Package markdown renders the human-readable part of command results.
package markdown

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Table renders rows as a titled markdown table. When headers is empty the
// sorted union of row keys is used. Header names are shown in title case.
func Table(title string, rows []map[string]interface{}, headers []string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "### %s\n", title)
	}
	if len(rows) == 0 {
		b.WriteString("**No entries.**\n")
		return b.String()
	}
	if len(headers) == 0 {
		headers = keys(rows)
	}

	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
	titles := make([]any, len(headers))
	for i, h := range headers {
		titles[i] = HeaderTitle(h)
	}
	table.Header(titles...)
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = Cell(row[h])
		}
		table.Append(cells)
	}
	table.Render()
	return b.String()
}

// KeyValue renders a single object as a one-row table.
func KeyValue(title string, obj map[string]interface{}, headers []string) string {
	return Table(title, []map[string]interface{}{obj}, headers)
}

// List renders a single-column table of plain values.
func List(title, header string, values []string) string {
	rows := make([]map[string]interface{}, len(values))
	for i, v := range values {
		rows[i] = map[string]interface{}{header: v}
	}
	return Table(title, rows, []string{header})
}

func keys(rows []map[string]interface{}) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Cell formats a value for a table cell. Lists are comma-joined, objects
// are rendered as compact JSON.
func Cell(v interface{}) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case []string:
		s = strings.Join(t, ", ")
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Cell(item)
		}
		s = strings.Join(parts, ", ")
	case map[string]interface{}:
		raw, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(raw)
		}
	default:
		s = fmt.Sprint(t)
	}
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// HeaderTitle turns snake_case and camelCase names into "Title Case".
// Upper-case names such as AUDIT_ID are kept as-is.
func HeaderTitle(name string) string {
	if strings.ToUpper(name) == name {
		return name
	}
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range name {
		switch {
		case r == '_' || r == ' ' || r == '-':
			flush()
		case unicode.IsUpper(r) && i > 0:
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
