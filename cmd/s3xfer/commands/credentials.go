package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/internal/config"
	"github.com/systmms/s3xfer/pkg/credential"
)

// credentialInfo is the printable part of a credential. Secrets never leave
// the resolver.
type credentialInfo struct {
	Key         string     `json:"key"`
	Kind        string     `json:"kind"`
	AccessKeyID string     `json:"accessKeyId"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	Expired     bool       `json:"expired"`
}

func NewCredentialsCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "credentials KEY",
		Short: "Check a credential stored in the vault",
		Long: `Resolve a keyName from the configured vault and show what it holds.

Only the credential kind, access key id and expiration are printed. Secret
keys and session tokens are never shown.

Examples:
  s3xfer credentials reports-reader
  s3xfer credentials reports-reader --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			key := args[0]
			m, err := rt.resolver.Resolve(cmd.Context(), key)
			if err != nil {
				return err
			}

			info := credentialInfo{
				Key:         key,
				Kind:        string(m.Kind()),
				AccessKeyID: m.AccessKey(),
				Expired:     credential.Expired(m, time.Now()),
			}
			if tmp, ok := m.(credential.Temporary); ok {
				info.Expiration = tmp.Expiration
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			_, _ = fmt.Fprintf(out, "Key:         %s\n", info.Key)
			_, _ = fmt.Fprintf(out, "Kind:        %s\n", info.Kind)
			_, _ = fmt.Fprintf(out, "Access key:  %s\n", info.AccessKeyID)
			if info.Expiration != nil {
				status := "valid"
				if info.Expired {
					status = "expired"
				}
				_, _ = fmt.Fprintf(out, "Expiration:  %s (%s)\n", info.Expiration.UTC().Format(time.RFC3339), status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
