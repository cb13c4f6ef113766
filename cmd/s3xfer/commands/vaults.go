package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/internal/config"
	"github.com/systmms/s3xfer/internal/vault"
)

func NewVaultsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "vaults",
		Short: "List supported vault types",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := vault.NewRegistry()

			configured := ""
			if err := cfg.Load(); err == nil && cfg.Definition != nil {
				configured = cfg.Definition.Vault.Type
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TYPE\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "----\t-----------\n")
			for _, t := range registry.Types() {
				desc := vaultDescription(t)
				if t == configured {
					desc += " (configured)"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", t, desc)
			}
			return w.Flush()
		},
	}
}

func vaultDescription(storeType string) string {
	switch storeType {
	case vault.TypeSecretsManager:
		return "AWS Secrets Manager"
	case vault.TypeParameterStore:
		return "AWS Systems Manager Parameter Store (SecureString)"
	case vault.TypeAzureKeyVault:
		return "Azure Key Vault secrets"
	case vault.TypeGCPSecretManager:
		return "Google Cloud Secret Manager"
	case vault.TypeKeyring:
		return "OS keychain"
	case vault.TypeMemory:
		return "In-process map, for tests and local runs"
	default:
		return ""
	}
}
