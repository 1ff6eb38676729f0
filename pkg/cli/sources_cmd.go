package cli

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"aida/pkg/cli/client"
)

var (
	sourceColumns = []string{"id", "name", "contentKind", "sizeBytes", "createdAt"}
	entryColumns  = []string{"ordinal", "payload"}
)

func newSourcesCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sources",
		Aliases: []string{"data-sources"},
		Short:   "Browse uploaded data sources",
	}
	cmd.AddCommand(newSourcesListCmd(c))
	cmd.AddCommand(newSourcesGetCmd(c))
	cmd.AddCommand(newSourcesEntriesCmd(c))
	return cmd
}

func newSourcesListCmd(c *client.Client) *cobra.Command {
	var (
		projectID  string
		maxResults int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the data sources of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := pageQuery(maxResults)
			q.Set("projectId", projectID)
			items, err := client.FetchAllPages(cmd.Context(), c, http.MethodGet, "/data-sources", q)
			if err != nil {
				return err
			}
			return printList(cmd, items, sourceColumns)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Page size used while fetching")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newSourcesGetCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.Do(cmd.Context(), http.MethodGet, "/data-sources/"+url.PathEscape(args[0]), nil, nil)
			if err != nil {
				return err
			}
			var out map[string]any
			if err := client.DecodeJSON(resp, &out); err != nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), getOutputFormat(cmd), out)
		},
	}
}

func newSourcesEntriesCmd(c *client.Client) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "entries <id>",
		Short: "List the records parsed from a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/data-sources/" + url.PathEscape(args[0]) + "/entries"
			items, err := client.FetchAllPages(cmd.Context(), c, http.MethodGet, path, pageQuery(maxResults))
			if err != nil {
				return err
			}
			return printList(cmd, items, entryColumns)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Page size used while fetching")
	return cmd
}
