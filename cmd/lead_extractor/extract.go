package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/lead-extractor/internal/db"
	"github.com/jonathan/lead-extractor/internal/extraction"
	"github.com/jonathan/lead-extractor/internal/fetch"
	"github.com/jonathan/lead-extractor/internal/ingestion"
	"github.com/jonathan/lead-extractor/internal/observability"
	"github.com/jonathan/lead-extractor/internal/schemas"
	"github.com/jonathan/lead-extractor/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type extractOptions struct {
	file          string
	url           string
	text          string
	extractorFile string
	extractorID   string
	mode          string
	model         string
	out           string
	save          bool
	timeout       time.Duration
}

func newExtractCmd(root *rootFlags) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract records from a document",
		Long: "Extract records matching an extractor's JSON Schema from a file, URL or inline text. " +
			"Results are written as JSON with a data list and a content_too_long flag.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Path to a .txt, .md or .html document")
	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "URL of a document to download")
	cmd.Flags().StringVar(&opts.text, "text", "", "Inline document text")
	cmd.Flags().StringVarP(&opts.extractorFile, "extractor-file", "e", "", "Path to an extractor definition JSON file")
	cmd.Flags().StringVar(&opts.extractorID, "extractor-id", "", "ID of a stored extractor (requires DATABASE_URL)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(types.ModeEntireDocument), "Extraction mode: entire_document or retrieval")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name (defaults to the configured default model)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the JSON result to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the result with the stored extractor (requires --extractor-id)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Overall deadline for the extraction")

	cmd.MarkFlagsMutuallyExclusive("file", "url", "text")
	cmd.MarkFlagsMutuallyExclusive("extractor-file", "extractor-id")
	return cmd
}

func (o *extractOptions) validate() (types.Mode, error) {
	if o.file == "" && o.url == "" && o.text == "" {
		return "", fmt.Errorf("one of --file, --url or --text must be provided")
	}
	if o.extractorFile == "" && o.extractorID == "" {
		return "", fmt.Errorf("either --extractor-file or --extractor-id must be provided")
	}
	if o.save && o.extractorID == "" {
		return "", fmt.Errorf("--save requires --extractor-id")
	}
	return types.ParseMode(o.mode)
}

func runExtract(cmd *cobra.Command, root *rootFlags, opts *extractOptions) error {
	mode, err := opts.validate()
	if err != nil {
		return err
	}

	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var printer *observability.Printer
	if root.verbose {
		printer = observability.NewPrinter(cmd.ErrOrStderr())
	}

	var store *db.DB
	if opts.extractorID != "" {
		if store, err = a.store(ctx); err != nil {
			return err
		}
	}
	extractor, err := loadExtractor(ctx, store, opts)
	if err != nil {
		return err
	}

	doc, err := loadDocument(ctx, opts, ingestion.MaxBytes(a.cfg.MaxFileSizeMB))
	if err != nil {
		return err
	}
	if printer != nil {
		printer.PrintDocument(doc)
		printer.PrintExtractor(extractor)
	}

	invoker, err := a.invoker(ctx)
	if err != nil {
		return err
	}
	tokenizer, err := newTokenizer()
	if err != nil {
		return err
	}
	orchOpts := extraction.Options{
		Invoker:      invoker,
		Tokenizer:    tokenizer,
		MaxChunks:    a.cfg.MaxChunks,
		TokenOverlap: a.cfg.TokenOverlap,
		Logger:       a.logger.Named("extraction"),
	}
	if printer != nil {
		orchOpts.OnProgress = printer.PrintProgress
	}
	if mode == types.ModeRetrieval {
		narrower, err := a.narrower(ctx)
		if err != nil {
			return err
		}
		orchOpts.Narrower = narrower
	}
	orch, err := extraction.New(orchOpts)
	if err != nil {
		return err
	}

	resp, err := orch.Extract(ctx, mode, doc.Text, extractor, opts.model)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	a.logger.Debug("model usage", zap.Float64("calls", a.modelCalls()))

	if printer != nil {
		printer.PrintResponse(resp)
	}

	if opts.save {
		model := opts.model
		if model == "" {
			model = a.registry.Default().Name
		}
		runID, err := store.SaveExtraction(ctx, db.ExtractionRunInput{
			ExtractorID: extractor.ID,
			ModelName:   model,
			Mode:        mode,
			Source:      doc.Metadata.Source,
			Response:    resp,
		})
		if err != nil {
			return err
		}
		a.logger.Info("saved extraction", zap.String("run_id", runID.String()))
	}

	return writeResponse(cmd, opts.out, resp)
}

func loadExtractor(ctx context.Context, store *db.DB, opts *extractOptions) (*types.Extractor, error) {
	if opts.extractorFile != "" {
		data, err := os.ReadFile(opts.extractorFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read extractor file: %w", err)
		}
		ex, _, err := schemas.LoadExtractor(data)
		if err != nil {
			return nil, err
		}
		return ex, nil
	}

	id, err := uuid.Parse(opts.extractorID)
	if err != nil {
		return nil, fmt.Errorf("invalid --extractor-id: %w", err)
	}
	return store.GetExtractor(ctx, id)
}

func loadDocument(ctx context.Context, opts *extractOptions, maxBytes int64) (*ingestion.Document, error) {
	switch {
	case opts.file != "":
		doc, err := ingestion.LoadFile(opts.file, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to load document: %w", err)
		}
		return doc, nil
	case opts.url != "":
		page, err := fetch.Get(ctx, opts.url, fetch.Options{MaxBytes: maxBytes})
		if err != nil {
			return nil, err
		}
		doc, err := ingestion.Parse(page.Body, page.ContentType, page.URL, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page.URL, err)
		}
		return doc, nil
	default:
		doc, err := ingestion.Parse([]byte(opts.text), ingestion.MimeTypePlain, "inline", maxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse text: %w", err)
		}
		return doc, nil
	}
}

func writeResponse(cmd *cobra.Command, out string, resp *types.ExtractionResponse) error {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	b = append(b, '\n')

	if out == "" {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
