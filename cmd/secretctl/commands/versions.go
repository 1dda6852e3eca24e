package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/secretclient/internal/config"
	clierrors "github.com/systmms/secretclient/internal/errors"
)

func NewVersionsCommand(cfg *config.Config) *cobra.Command {
	var (
		maxItems   int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "versions NAME",
		Short: "List the versions of a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := collect(cmd, s.client.NewListSecretPropertyVersionsPager(args[0]), maxItems)
			if err != nil {
				return clierrors.OperationError(fmt.Sprintf("Listing versions of '%s'", args[0]), err)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			return displayProperties(cmd.OutOrStdout(), infos, true)
		},
	}

	cmd.Flags().IntVar(&maxItems, "max", 0, "Stop after this many versions (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
