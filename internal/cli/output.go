package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/davrell/fluentdml/internal/dml"
)

// writeRows renders result rows in the selected output format. Text output
// sorts columns per row for stable presentation; JSON output emits the rows
// as-is.
func writeRows(w io.Writer, format string, rows []dml.Row) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}
	for i, row := range rows {
		cols := make([]string, 0, len(row))
		for col := range row {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		fmt.Fprintf(w, "row %d:", i+1)
		for _, col := range cols {
			fmt.Fprintf(w, " %s=%v", col, row[col])
		}
		fmt.Fprintln(w)
	}
	return nil
}
