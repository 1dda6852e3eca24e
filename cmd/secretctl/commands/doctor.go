package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/secretclient/internal/config"
	clierrors "github.com/systmms/secretclient/internal/errors"
	"github.com/systmms/secretclient/pkg/credential"
)

// sourceTimeout bounds each credential check.
const sourceTimeout = 30 * time.Second

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check credential sources and vault connectivity",
		Long: `Verify that secretctl is properly configured.

This command checks:
- Configuration file and environment validity
- Each credential source in the chain, independently
- Access to the vault with the first working source`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg.Logger.Info("Checking secretctl configuration...")
			s, err := openSession(cfg)
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			defer s.Close()
			cfg.Logger.Info("Configuration loaded successfully")

			def := cfg.Definition
			_, _ = fmt.Fprintf(out, "Vault:     %s\n", s.client.Endpoint())
			_, _ = fmt.Fprintf(out, "Transport: %s\n", orDefault(def.Transport.Type, config.TransportHTTP))
			_, _ = fmt.Fprintf(out, "Chain:     %s\n\n", strings.Join(def.Sources(), " → "))

			results := checkSources(cmd.Context(), s)
			displaySourceResults(out, results, verbose)

			healthy := 0
			for _, result := range results {
				if result.Status == "healthy" {
					healthy++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d credential sources healthy\n", healthy, len(results))
			if healthy == 0 {
				return clierrors.UserError{
					Message:    "No credential source is available",
					Suggestion: "Sign in with 'az login' or 'azd auth login', or configure a managed identity",
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), sourceTimeout)
			defer cancel()
			if _, _, err := s.client.NewListSecretPropertiesPager().NextPage(ctx); err != nil {
				return clierrors.OperationError("Vault check", err)
			}
			_, _ = fmt.Fprintln(out, "✓ Vault is reachable and secrets can be listed")

			cfg.Logger.Info("All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failing sources")

	return cmd
}

// SourceHealth represents the health status of a credential source
type SourceHealth struct {
	Name       string
	Status     string // healthy, error
	Message    string
	Suggestion string
}

// checkSources tries every member of the chain on its own, so a failure
// early in the chain is visible even when a later source works.
func checkSources(ctx context.Context, s *session) []SourceHealth {
	sources := []credential.Provider{s.cred}
	if chain, ok := s.cred.(*credential.Chained); ok {
		sources = chain.Sources()
	}

	results := make([]SourceHealth, 0, len(sources))
	for _, src := range sources {
		health := SourceHealth{Name: src.Name()}

		sctx, cancel := context.WithTimeout(ctx, sourceTimeout)
		tok, err := src.GetToken(sctx, s.scope)
		cancel()

		if err != nil {
			health.Status = "error"
			health.Message = err.Error()
			var userErr clierrors.UserError
			if errors.As(clierrors.OperationError("token", err), &userErr) {
				health.Suggestion = userErr.Suggestion
			}
		} else {
			health.Status = "healthy"
			health.Message = "token expires " + formatExpiry(tok.ExpiresOn, time.Now())
		}
		results = append(results, health)
	}
	return results
}

// displaySourceResults shows source health in a formatted table
func displaySourceResults(out io.Writer, results []SourceHealth, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "SOURCE\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "------\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "healthy":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, firstLine(result.Message))
	}

	_ = w.Flush()

	if verbose {
		for _, result := range results {
			if result.Status == "error" && result.Suggestion != "" {
				_, _ = fmt.Fprintf(out, "\n%s suggestions:\n  • %s\n", result.Name, result.Suggestion)
			}
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
