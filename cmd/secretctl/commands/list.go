package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/spf13/cobra"

	"github.com/systmms/secretclient/internal/config"
	clierrors "github.com/systmms/secretclient/internal/errors"
	"github.com/systmms/secretclient/pkg/pager"
)

func NewListCommand(cfg *config.Config) *cobra.Command {
	var (
		maxItems   int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secrets in the vault",
		Long: `List the properties of every secret in the vault. Values are never shown.

Pages are fetched on demand, so --max stops the listing early without
requesting the remaining pages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := collect(cmd, s.client.NewListSecretPropertiesPager(), maxItems)
			if err != nil {
				return clierrors.OperationError("Listing secrets", err)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			return displayProperties(cmd.OutOrStdout(), infos, false)
		},
	}

	cmd.Flags().IntVar(&maxItems, "max", 0, "Stop after this many secrets (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// collect drains p, stopping after maxItems when positive.
func collect(cmd *cobra.Command, p *pager.Pager[azsecrets.SecretProperties], maxItems int) ([]secretInfo, error) {
	infos := make([]secretInfo, 0)
	for props, err := range p.Items(cmd.Context()) {
		if err != nil {
			return nil, err
		}
		infos = append(infos, describeProperties(&props))
		if maxItems > 0 && len(infos) >= maxItems {
			break
		}
	}
	return infos, nil
}

// displayProperties shows secret properties in a formatted table
func displayProperties(out io.Writer, infos []secretInfo, withVersion bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if withVersion {
		_, _ = fmt.Fprintf(w, "VERSION\tENABLED\tUPDATED\tCONTENT TYPE\tTAGS\n")
	} else {
		_, _ = fmt.Fprintf(w, "NAME\tENABLED\tUPDATED\tCONTENT TYPE\tTAGS\n")
	}

	for _, info := range infos {
		first := info.Name
		if withVersion {
			first = info.Version
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			first, formatEnabled(info.Enabled), formatTime(info.Updated), orDash(info.ContentType), formatTags(info.Tags))
	}

	return w.Flush()
}
