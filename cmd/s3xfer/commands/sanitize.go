package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/internal/config"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
)

func NewSanitizeCommand(cfg *config.Config) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "sanitize KEY...",
		Short: "Print vault-safe names for keys",
		Long: `Rewrite keys into the name alphabet of a secret store.

Valid keys are printed unchanged. Anything else has its invalid characters
replaced and a hash suffix appended, so distinct keys stay distinct.

Examples:
  s3xfer sanitize "resourceDefinition-1-secret-a b"
  s3xfer sanitize --profile azure.keyvault my_key`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sanitizer, ok := keyname.Profiles[profile]
			if !ok {
				names := make([]string, 0, len(keyname.Profiles))
				for name := range keyname.Profiles {
					names = append(names, name)
				}
				sort.Strings(names)
				return dserrors.UserError{
					Message:    fmt.Sprintf("Unknown profile %q", profile),
					Suggestion: "Use one of: " + strings.Join(names, ", "),
				}
			}
			sanitizer = sanitizer.WithLogger(cfg.Logger)

			for _, key := range args {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), sanitizer.Sanitize(key))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", keyname.SecretsManager.Name, "Store naming profile")
	return cmd
}
