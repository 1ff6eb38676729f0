package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"aida/pkg/cli/client"
)

var uploadMediaTypes = map[string]string{
	"csv": "text/csv",
	"sql": "application/sql",
}

func newUploadCmd(c *client.Client) *cobra.Command {
	var projectID, fileType string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV or SQL file into a project",
		Example: `  aida upload people.csv --project 0193...
  aida upload dump.txt --project 0193... --type sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := uploadKind(args[0], fileType)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			resp, err := c.Upload(cmd.Context(), client.UploadForm{
				FileType:  kind,
				ProjectID: projectID,
				FileName:  filepath.Base(args[0]),
				MediaType: uploadMediaTypes[kind],
				Body:      f,
			})
			if err != nil {
				return err
			}
			var out map[string]any
			if err := client.DecodeJSON(resp, &out); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(cmd.OutOrStdout(), out)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\ndata source: %s\nentries:     %s\n",
				client.ExtractField(out, "msg"), client.ExtractField(out, "dataSourceId"), client.ExtractField(out, "entries"))
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Target project id")
	cmd.Flags().StringVar(&fileType, "type", "", "File type (csv, sql); inferred from the extension when omitted")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// uploadKind returns the explicit type, or the one implied by name's
// extension.
func uploadKind(name, explicit string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(explicit))
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
	if _, ok := uploadMediaTypes[kind]; !ok {
		if explicit == "" {
			return "", fmt.Errorf("cannot infer file type of %q: pass --type csv or --type sql", name)
		}
		return "", fmt.Errorf("unsupported file type %q: use csv or sql", explicit)
	}
	return kind, nil
}
