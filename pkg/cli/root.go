// Package cli implements the aida command-line client.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"aida/pkg/cli/client"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		reportError(os.Stdout, os.Stderr, output, err)
		return 1
	}
	return 0
}

func reportError(stdout, stderr io.Writer, output string, err error) {
	if output != "json" {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return
	}
	obj := map[string]any{"error": err.Error()}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		obj["http_status"] = apiErr.HTTPStatus
		obj["kind"] = apiErr.Kind
		if len(apiErr.Errors) > 0 {
			obj["errors"] = apiErr.Errors
		}
	}
	_ = client.PrintJSON(stdout, obj)
}

func newRootCmd() *cobra.Command {
	var (
		host    string
		token   string
		output  string
		profile string
	)
	c := client.NewClient(host, token)

	rootCmd := &cobra.Command{
		Use:           "aida",
		Short:         "Client for the aida ingestion server",
		Long:          "Upload CSV and SQL files into projects and browse the stored data sources.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadOrNewUserConfig()
			p, err := cfg.ActiveProfile(profile)
			if err != nil {
				return err
			}

			// flag > env > profile > default
			hostSource := resolve(cmd, "host", &host, "AIDA_HOST", p.Host)
			resolve(cmd, "token", &token, "AIDA_TOKEN", p.Token)
			resolve(cmd, "output", &output, "AIDA_OUTPUT", p.Output)

			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if hostSource == sourceProfile {
				hostSource = fmt.Sprintf("profile %q", profileName(cfg, profile))
			}
			base, err := serverURL(host, hostSource)
			if err != nil {
				return err
			}
			c.BaseURL = base
			c.Token = token
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(newUploadCmd(c))
	rootCmd.AddCommand(newProjectsCmd(c))
	rootCmd.AddCommand(newSourcesCmd(c))
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

const (
	sourceFlag    = "--%s"
	sourceProfile = "profile"
	sourceDefault = "the default"
)

// resolve fills *dst from env or the profile when the flag was not set and
// names where the value came from.
func resolve(cmd *cobra.Command, flag string, dst *string, env, fromProfile string) string {
	if cmd.Flags().Changed(flag) {
		return fmt.Sprintf(sourceFlag, flag)
	}
	if v := os.Getenv(env); v != "" {
		*dst = v
		return "$" + env
	}
	if fromProfile != "" {
		*dst = fromProfile
		return sourceProfile
	}
	return sourceDefault
}

func profileName(cfg *UserConfig, override string) string {
	if override != "" {
		return override
	}
	return cfg.currentName()
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
