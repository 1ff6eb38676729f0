package cli

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"aida/pkg/cli/client"
)

var projectColumns = []string{"id", "name", "description", "createdAt", "lastOpened"}

func newProjectsCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage your projects",
	}
	cmd.AddCommand(newProjectsCreateCmd(c))
	cmd.AddCommand(newProjectsListCmd(c))
	cmd.AddCommand(newProjectsGetCmd(c))
	return cmd
}

func newProjectsCreateCmd(c *client.Client) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.Do(cmd.Context(), http.MethodPost, "/projects", nil, map[string]string{
				"name":        name,
				"description": description,
			})
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
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectsListCmd(c *client.Client) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the projects you own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := client.FetchAllPages(cmd.Context(), c, http.MethodGet, "/projects", pageQuery(maxResults))
			if err != nil {
				return err
			}
			return printList(cmd, items, projectColumns)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Page size used while fetching")
	return cmd
}

func newProjectsGetCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a project and mark it opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.Do(cmd.Context(), http.MethodGet, "/projects/"+url.PathEscape(args[0]), nil, nil)
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

func pageQuery(maxResults int) url.Values {
	q := url.Values{}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}
	return q
}
