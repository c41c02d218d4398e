package main

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/lead-extractor/internal/config"
	"github.com/jonathan/lead-extractor/internal/ingestion"
	"github.com/jonathan/lead-extractor/internal/llm"
	"github.com/jonathan/lead-extractor/internal/observability"
	"github.com/spf13/cobra"
)

func newConfigurationCmd(root *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "configuration",
		Short: "Show supported models and limits",
		Long:  "Print the available models, accepted mimetypes, maximum file size, concurrency and chunk limits.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg.DefaultModel)
			if err != nil {
				return err
			}
			listing := llm.NewListing(reg, llm.Limits{
				AcceptedMimeTypes: ingestion.AcceptedMimeTypes(),
				MaxFileSizeMB:     cfg.MaxFileSizeMB,
				MaxConcurrency:    cfg.MaxConcurrency,
				MaxChunks:         cfg.MaxChunks,
			})

			switch format {
			case "json":
				b, err := json.MarshalIndent(listing, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal configuration: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			case "text":
				observability.NewPrinter(cmd.OutOrStdout()).PrintListing(listing)
				return nil
			default:
				return fmt.Errorf("unknown format %q (expected json or text)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or text")
	return cmd
}
