package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/internal/config"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/eligibility"
	"github.com/systmms/s3xfer/pkg/location"
)

func NewEligibleCommand(cfg *config.Config) *cobra.Command {
	var sourceFile, destinationFile string

	cmd := &cobra.Command{
		Use:   "eligible",
		Short: "Show which strategy a transfer would use",
		Long: `Print "direct-copy" when both locations are S3 on the same endpoint,
otherwise "stream".

Descriptors are YAML or JSON files with a type and a properties map:

  type: AmazonS3
  properties:
    bucketName: reports
    region: eu-west-1
    keyName: reports-reader`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := loadDescriptors(sourceFile, destinationFile)
			if err != nil {
				return err
			}
			strategy := eligibility.Decide(src, &dst)
			if cfg.Logger != nil {
				cfg.Logger.Debug("%s -> %s: %s", src, dst, strategy)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFile, "source", "", "Source descriptor file")
	cmd.Flags().StringVar(&destinationFile, "destination", "", "Destination descriptor file")
	return cmd
}

func loadDescriptors(sourceFile, destinationFile string) (location.Descriptor, location.Descriptor, error) {
	if sourceFile == "" || destinationFile == "" {
		return location.Descriptor{}, location.Descriptor{}, dserrors.UserError{
			Message:    "Both a source and a destination descriptor are required",
			Suggestion: "Use --source <file> --destination <file>",
		}
	}
	src, err := location.Load(sourceFile)
	if err != nil {
		return location.Descriptor{}, location.Descriptor{}, dserrors.UserError{Message: "Invalid source descriptor", Details: err.Error(), Err: err}
	}
	dst, err := location.Load(destinationFile)
	if err != nil {
		return location.Descriptor{}, location.Descriptor{}, dserrors.UserError{Message: "Invalid destination descriptor", Details: err.Error(), Err: err}
	}
	return src, dst, nil
}
