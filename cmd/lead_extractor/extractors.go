package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/lead-extractor/internal/schemas"
	"github.com/spf13/cobra"
)

func newExtractorsCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extractors",
		Short: "Manage stored extractors",
	}

	var owner string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored extractors for an owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			extractors, err := store.ListExtractors(cmd.Context(), owner)
			if err != nil {
				return err
			}
			for _, ex := range extractors {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", ex.ID, ex.Name, ex.Description)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&owner, "owner", "", "Owner ID (required)")
	_ = listCmd.MarkFlagRequired("owner")

	var createOwner, file string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Validate and store an extractor definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read extractor file: %w", err)
			}
			ex, _, err := schemas.LoadExtractor(data)
			if err != nil {
				return err
			}
			ex.OwnerID = createOwner

			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			created, err := store.CreateExtractor(cmd.Context(), ex)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(created, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	createCmd.Flags().StringVarP(&file, "file", "f", "", "Path to an extractor definition JSON file (required)")
	createCmd.Flags().StringVar(&createOwner, "owner", "", "Owner ID (required)")
	_ = createCmd.MarkFlagRequired("file")
	_ = createCmd.MarkFlagRequired("owner")

	var runsID string
	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored extraction results for an extractor, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseExtractorID(runsID)
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := store.ListExtractions(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%d records\tcontent_too_long=%t\n",
					run.ID, run.CreatedAt.Format(time.RFC3339), run.ModelName, run.Mode, len(run.Records), run.ContentTooLong)
			}
			return nil
		},
	}
	runsCmd.Flags().StringVar(&runsID, "id", "", "Extractor ID (required)")
	runsCmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to show, 0 for all")
	_ = runsCmd.MarkFlagRequired("id")

	var deleteID string
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a stored extractor and its results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseExtractorID(deleteID)
			if err != nil {
				return err
			}

			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.DeleteExtractor(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted extractor %s\n", id)
			return err
		},
	}
	deleteCmd.Flags().StringVar(&deleteID, "id", "", "Extractor ID (required)")
	_ = deleteCmd.MarkFlagRequired("id")

	cmd.AddCommand(listCmd, createCmd, runsCmd, deleteCmd)
	return cmd
}

func parseExtractorID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --id %q: %w", raw, err)
	}
	return id, nil
}
