package main

import (
	"fmt"
	"os"

	"github.com/jonathan/lead-extractor/internal/schemas"
	"github.com/spf13/cobra"
)

func newValidateSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-schema FILE...",
		Short: "Validate extractor definition files",
		Long:  "Check extractor definitions: document shape, record schema compilation and that every example output matches the schema.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err == nil {
					var schema *schemas.ExtractionSchema
					if _, schema, err = schemas.LoadExtractor(data); err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: valid (function %s)\n", path, schema.FunctionName())
						continue
					}
				}
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", path, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d extractor definitions are invalid", failed, len(args))
			}
			return nil
		},
	}
}
