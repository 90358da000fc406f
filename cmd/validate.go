package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"keel/internal/app"
	"keel/internal/config"
)

var (
	validateManifests string
	validateOutput    string
)

// validateCmd checks the manifests without applying them.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifests without applying them",
	Long: `Reads every manifest, decodes and validates each document and resolves the
dependencies between resources. Nothing is sent to the platform.

Exits with code 2 when any problem is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter(validateOutput)
		if err != nil {
			return err
		}
		application, err := newApplication(func(c *config.EngineConfig) {
			if cmd.Flags().Changed("manifests") {
				c.Manifest.Source = config.SourceFilesystem
				c.Manifest.Path = validateManifests
			}
		})
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		report, err := application.Validate(ctx)
		var invalid *app.ValidationFailedError
		if err != nil && !errors.As(err, &invalid) {
			return err
		}
		if ferr := formatter.FormatValidation(cmd.OutOrStdout(), report); ferr != nil {
			return ferr
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateManifests, "manifests", "m", "", "Manifest directory or file (overrides manifest.path)")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "table", "Output format: table, json or yaml")
}
