package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/secretclient/internal/config"
	clierrors "github.com/systmms/secretclient/internal/errors"
)

func NewTokenCommand(cfg *config.Config) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Check that a bearer token can be acquired",
		Long: `Acquire a token through the configured credential chain and show where it
came from and when it expires. The token itself is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if scope == "" {
				scope = s.scope
			}

			tok, err := s.cred.GetToken(cmd.Context(), scope)
			if err != nil {
				return clierrors.OperationError("Acquiring token", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Source:  %s\n", orDefault(tok.Source, s.cred.Name()))
			_, _ = fmt.Fprintf(out, "Scope:   %s\n", scope)
			_, _ = fmt.Fprintf(out, "Expires: %s\n", formatExpiry(tok.ExpiresOn, time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Token scope (default: the vault scope)")

	return cmd
}

func formatExpiry(expiresOn, now time.Time) string {
	if expiresOn.IsZero() {
		return "unknown"
	}
	remaining := expiresOn.Sub(now).Round(time.Second)
	if remaining <= 0 {
		return fmt.Sprintf("%s (expired)", expiresOn.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s (in %s)", expiresOn.UTC().Format(time.RFC3339), remaining)
}
