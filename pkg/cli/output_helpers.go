package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"aida/pkg/cli/client"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// printList renders a list either as JSON or as a table of columns.
func printList(cmd *cobra.Command, items []any, columns []string) error {
	w := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		if items == nil {
			items = []any{}
		}
		return client.PrintJSON(w, items)
	}
	client.PrintTable(w, columns, client.RowsOf(items, columns))
	return nil
}

// printObject renders a single object either as JSON or as aligned fields.
func printObject(w io.Writer, format string, obj map[string]any) error {
	if format == "json" {
		return client.PrintJSON(w, obj)
	}
	client.PrintDetail(w, obj)
	return nil
}
