package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/internal/config"
	"github.com/systmms/s3xfer/internal/transfer"
)

func NewTransferCommand(cfg *config.Config) *cobra.Command {
	var (
		sourceFile      string
		destinationFile string
		id              string
		forceStream     bool
		jsonOutput      bool
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer objects between two locations",
		Long: `Copy the source object, or every object under the source prefix, to the
destination.

Locations on the same endpoint are copied server-side. When no keyName is
set on the source and transfer.roleArn is configured, temporary credentials
are issued for the copy and removed from the vault afterwards.

Examples:
  s3xfer transfer --source src.yaml --destination dst.yaml
  s3xfer transfer --source src.yaml --destination dst.yaml --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := loadDescriptors(sourceFile, destinationFile)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			if id == "" {
				id = uuid.NewString()
			}
			result, err := rt.transferService(forceStream).Execute(cmd.Context(), transfer.Request{
				ID:          id,
				Source:      src,
				Destination: &dst,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"id":       id,
					"strategy": result.Strategy,
					"objects":  result.Objects,
					"bytes":    result.Bytes,
				})
			}

			_, _ = fmt.Fprintf(out, "Transfer %s completed (%s)\n", id, result.Strategy)
			for _, obj := range result.Objects {
				_, _ = fmt.Fprintf(out, "  %s\n", obj)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFile, "source", "", "Source descriptor file")
	cmd.Flags().StringVar(&destinationFile, "destination", "", "Destination descriptor file")
	cmd.Flags().StringVar(&id, "id", "", "Transfer id (default: random)")
	cmd.Flags().BoolVar(&forceStream, "stream", false, "Always stream, even when a direct copy is possible")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
