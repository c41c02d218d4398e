// Package main provides the lead_extractor command line tool, which pulls
// structured records out of documents with an LLM.
package main

import (
	"fmt"
	"os"

	"github.com/jonathan/lead-extractor/internal/config"
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "lead_extractor",
		Short:         "Schema-driven LLM extraction",
		Long:          "lead_extractor extracts records matching a JSON Schema from text, Markdown and HTML documents using OpenAI or Gemini models.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to a YAML or JSON config file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Print progress and a summary to stderr")

	cmd.AddCommand(
		newExtractCmd(flags),
		newConfigurationCmd(flags),
		newValidateSchemaCmd(),
		newExtractorsCmd(flags),
	)
	return cmd
}

func main() {
	// Load .env file if it exists
	config.LoadEnvFile()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
