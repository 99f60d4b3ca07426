package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/pkg/models"
)

var queryPatternsCmd = &cobra.Command{
	Use:   "query-patterns",
	Short: "List patterns filtered by category and/or status",
	RunE:  runQueryPatterns,
}

func init() {
	queryPatternsCmd.Flags().String("category", "", "Filter by category (e.g. auth, errors, data-access)")
	queryPatternsCmd.Flags().String("status", "", "Filter by status: discovered, approved, ignored")
	rootCmd.AddCommand(queryPatternsCmd)
}

func runQueryPatterns(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	status, _ := cmd.Flags().GetString("status")

	store, _, err := openProjectStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var patterns []models.Pattern
	switch {
	case category != "" && status != "":
		byCat, err := store.GetByCategory(models.Category(category))
		if err != nil {
			return err
		}
		for _, p := range byCat {
			if p.Status == models.Status(status) {
				patterns = append(patterns, p)
			}
		}
	case category != "":
		patterns, err = store.GetByCategory(models.Category(category))
	case status != "":
		patterns, err = store.GetByStatus(models.Status(status))
	default:
		return errkind.InvalidArg("query-patterns", fmt.Errorf("at least one of --category or --status is required"))
	}
	if err != nil {
		return err
	}

	rows := make([][]string, len(patterns))
	for i, p := range patterns {
		rows[i] = []string{p.ID, p.Name, string(p.Category), string(p.Status), string(p.Confidence.Level), fmt.Sprintf("%d", len(p.Locations))}
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		"Patterns",
		[]string{"ID", "Name", "Category", "Status", "Confidence", "Locations"},
		rows, nil, patterns,
	))
}
