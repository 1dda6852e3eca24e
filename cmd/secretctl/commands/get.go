package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/secretclient/internal/config"
	clierrors "github.com/systmms/secretclient/internal/errors"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		version    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Get a single secret value",
		Long: `Retrieve and display a single secret value.

By default only the raw value is printed, making it suitable for scripting.

Examples:
  # Get the current version
  secretctl get db-password

  # Get a specific version with metadata in JSON format
  secretctl get db-password --version 0123abcd --json

  # Use in scripts
  export DB_PASSWORD=$(secretctl get db-password)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			op := fmt.Sprintf("Getting secret '%s'", name)
			resp, err := s.client.GetSecret(cmd.Context(), name, version)
			if err != nil {
				return clierrors.OperationError(op, err)
			}
			secret, err := resp.Body()
			if err != nil {
				return clierrors.OperationError(op, err)
			}

			if secret.Value == nil {
				return clierrors.UserError{
					Message:    fmt.Sprintf("Secret '%s' has no value", name),
					Suggestion: "Check whether the secret version is disabled",
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				info := describe(secret.ID, secret.Attributes, secret.ContentType, secret.Tags)
				info.Value = *secret.Value
				return writeJSON(out, info)
			}

			// Raw value output (default)
			_, err = fmt.Fprint(out, *secret.Value)
			return err
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Secret version (default: current)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}
