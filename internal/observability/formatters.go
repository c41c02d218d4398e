// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/lead-extractor/internal/extraction"
	"github.com/jonathan/lead-extractor/internal/ingestion"
	"github.com/jonathan/lead-extractor/internal/llm"
	"github.com/jonathan/lead-extractor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// maxFieldsToShow caps the fields printed per record
	maxFieldsToShow = 6
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		pad := boxWidth - 4 - utf8.RuneCountInString(line)
		fmt.Fprintf(p.out, "│ %s%s │\n", line, strings.Repeat(" ", pad))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintDocument outputs a summary of the ingested document.
func (p *Printer) PrintDocument(doc *ingestion.Document) {
	if doc == nil || doc.Metadata == nil {
		return
	}

	var sb strings.Builder
	meta := doc.Metadata
	sb.WriteString(fmt.Sprintf("Source:   %s\n", meta.Source))
	sb.WriteString(fmt.Sprintf("Type:     %s\n", meta.MimeType))
	if meta.Platform != "" {
		sb.WriteString(fmt.Sprintf("Platform: %s\n", meta.Platform))
	}
	sb.WriteString(fmt.Sprintf("Size:     %d bytes\n", meta.Bytes))
	sb.WriteString(fmt.Sprintf("Text:     %d characters\n", utf8.RuneCountInString(doc.Text)))
	sb.WriteString(fmt.Sprintf("Hash:     %s", truncate(meta.Hash, 19)))

	p.printBox("INPUT DOCUMENT", sb.String())
}

// PrintExtractor outputs the extractor definition used for a run.
func (p *Printer) PrintExtractor(ex *types.Extractor) {
	if ex == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:     %s\n", ex.Name))
	if ex.Description != "" {
		sb.WriteString(fmt.Sprintf("About:    %s\n", ex.Description))
	}
	sb.WriteString(fmt.Sprintf("Examples: %d", len(ex.Examples)))
	if ex.Instruction != "" {
		sb.WriteString("\n\nInstructions:\n")
		sb.WriteString(ex.Instruction)
	}

	p.printBox("EXTRACTOR", sb.String())
}

// PrintProgress outputs a single progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event extraction.ProgressEvent) {
	fmt.Fprintf(p.out, "  → [%s] %s\n", event.Step, event.Message)
}

// PrintResponse outputs the extracted records, showing at most a handful of
// fields per record.
func (p *Printer) PrintResponse(resp *types.ExtractionResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Extracted %d records", len(resp.Data)))
	if resp.ContentTooLong {
		sb.WriteString(" (document truncated)")
	}
	sb.WriteString("\n")

	count := min(len(resp.Data), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("\n#%d\n", i+1))
		sb.WriteString(formatRecord(resp.Data[i]))
	}

	if len(resp.Data) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more records", len(resp.Data)-maxItemsToShow))
	}

	p.printBox("EXTRACTION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

func formatRecord(rec types.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i == maxFieldsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more fields\n", len(keys)-maxFieldsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("  %s: %s\n", k, formatValue(rec[k])))
	}
	return sb.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// PrintListing outputs the models and limits reported by the configuration command.
func (p *Printer) PrintListing(listing llm.Listing) {
	var sb strings.Builder
	sb.WriteString("Models:\n")
	for _, m := range listing.AvailableModels {
		marker := " "
		if m.Default {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf(" %s %s\n", marker, m.Name))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Mimetypes:       %s\n", strings.Join(listing.AcceptedMimeTypes, ", ")))
	sb.WriteString(fmt.Sprintf("Max file size:   %d MB\n", listing.MaxFileSizeMB))
	sb.WriteString(fmt.Sprintf("Max concurrency: %d\n", listing.MaxConcurrency))
	if listing.MaxChunks == 0 {
		sb.WriteString("Max chunks:      unlimited")
	} else {
		sb.WriteString(fmt.Sprintf("Max chunks:      %d", listing.MaxChunks))
	}

	p.printBox("CONFIGURATION", sb.String())
}
