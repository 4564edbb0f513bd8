package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/schema"
	"github.com/example/filedupe/internal/wire"
)

// SchemaCmd returns the schema command
func SchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the record type registry",
		Long:  "Register record types and their file-like fields, and show what is registered.",
	}
	cmd.AddCommand(schemaSyncCmd())
	cmd.AddCommand(schemaShowCmd())
	return cmd
}

func schemaSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [file]",
		Short: "Register record types from a schema file",
		Long: `Read a schema file and replace the registered record types and reference
fields with its contents. Missing storage tables are created.
Defaults to the configured schema_file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := wire.Config().SchemaFile
			if len(args) == 1 {
				path = args[0]
			}
			return syncSchema(cmd, path)
		},
	}
}

func syncSchema(cmd *cobra.Command, path string) error {
	reg, err := schema.Load(path)
	if err != nil {
		return err
	}
	c, err := wire.Get()
	if err != nil {
		return err
	}
	result, err := c.Registry.Sync(cmd.Context(), reg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %d record types with %d reference fields from %s\n",
		result.RecordTypes, result.ReferenceFields, path)
	return nil
}

func schemaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List registered reference fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c, err := wire.Get()
			if err != nil {
				return err
			}
			fields, err := c.Catalog.AllReferenceFields(cmd.Context())
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				fmt.Fprintln(out, "No reference fields registered.")
				return nil
			}
			for _, f := range fields {
				history := "-"
				if f.HasHistory() {
					history = *f.HistoryTable
				}
				fmt.Fprintf(out, "%-20s %-20s %s.%s (history: %s)\n",
					f.RecordType, f.FieldName, f.CurrentTable, f.Column, history)
			}
			return nil
		},
	}
}
