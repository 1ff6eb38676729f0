package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
	}
	cmd.AddCommand(newAuthTokenCmd())
	cmd.AddCommand(newAuthLoginCmd())
	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var (
		principal string
		secret    string
		expires   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development HS256 token and save it to the active profile",
		Example: `  aida auth token --principal user-1 --secret dev-secret-change-me
  aida auth token --principal user-1 --secret mysecret --expires 48h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signed, err := mintToken(principal, secret, expires, time.Now())
			if err != nil {
				return err
			}
			if err := saveToken(signed); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "Principal id (sub and user.id claims)")
	cmd.Flags().StringVar(&secret, "secret", "", "Server JWT_SECRET")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

// mintToken signs a token carrying both the standard sub claim and the
// {"user": {"id": ...}} claim accepted by the server.
func mintToken(principal, secret string, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("--expires must be positive")
	}
	claims := jwt.MapClaims{
		"sub":  principal,
		"user": map[string]any{"id": principal},
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an existing token in the active profile",
		Long:  "Reads a token from the terminal without echo, or from stdin when it is not a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := saveToken(token); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", ConfigPath())
			return nil
		},
	}
}

func readToken(in io.Reader, prompt io.Writer) (string, error) {
	var raw string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		raw = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read token: %w", err)
		}
		raw = line
	}
	token := strings.TrimSpace(raw)
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}
