package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

func newSchemaCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema the assistant sees, including categorical values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			adapter, err := openDatasource(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer adapter.Close()

			schema, err := adapter.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to discover schema: %w", err)
			}
			return printSchema(cmd.OutOrStdout(), schema, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

func printSchema(out io.Writer, schema models.Schema, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintln(out, prompts.FormatSchemaWithValues(schema))
		return err
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(schema); err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text or yaml)", format)
	}
}
