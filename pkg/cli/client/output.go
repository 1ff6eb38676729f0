package client

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintTable writes rows under upper-cased column headers.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

// PrintDetail writes one "key:  value" line per field, keys sorted and
// values aligned.
func PrintDetail(w io.Writer, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	width := 0
	for k := range fields {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s:%s  %s\n", k, strings.Repeat(" ", width-len(k)), formatValue(fields[k]))
	}
}

// ExtractField renders data[key] for a table cell.
func ExtractField(data map[string]any, key string) string {
	return formatValue(data[key])
}

// ExtractRows turns the "data" array of a list response into table rows.
// Items that are not objects are skipped.
func ExtractRows(data map[string]any, columns []string) [][]string {
	items, ok := data["data"].([]any)
	if !ok {
		return nil
	}
	return RowsOf(items, columns)
}

// RowsOf renders items as table rows.
func RowsOf(items []any, columns []string) [][]string {
	var rows [][]string
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = ExtractField(m, c)
		}
		rows = append(rows, row)
	}
	return rows
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}
