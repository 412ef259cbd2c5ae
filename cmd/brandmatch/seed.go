package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ledgerline/brandmatch/internal/catalog"
	"github.com/ledgerline/brandmatch/internal/cli"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load catalog reference data from a JSON file",
		Long: `Replace the catalog's brands, categories, and transactions with the
contents of a JSON seed file. The swap is atomic: the previous catalog
stays intact when any part of the load fails.

The file carries three arrays:
  {"brands": [...], "categories": [...], "transactions": [...]}

Examples:
  brandmatch seed catalog.json
  brandmatch seed --dry-run catalog.json`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}

	// Flags
	cmd.Flags().Bool("dry-run", false, "Validate the file without writing")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	brands, categories, txns, err := parseCatalogFile(data)
	if err != nil {
		return err
	}

	slog.Info("Seed file parsed",
		"brands", len(brands),
		"categories", len(categories),
		"transactions", len(txns))

	if dryRun {
		fmt.Println(cli.FormatWarning("Dry run mode - not writing to the catalog"))
		return nil
	}

	cat, err := initCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()

	if err := cat.ReplaceAll(ctx, brands, categories, txns); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	// Re-read through the store so the report reflects what runs will see
	snap, err := catalog.Load(ctx, cat)
	if err != nil {
		return fmt.Errorf("failed to reload catalog: %w", err)
	}
	report := snap.Validate()

	content := fmt.Sprintf("Brands: %d\nCategories: %d\nTransactions: %d",
		report.Brands, report.Categories, report.Transactions)
	if !report.Clean() {
		content += fmt.Sprintf("\n\nDangling references (ignored for matching):\n  Unknown category refs: %d\n  Unknown brand refs: %d",
			report.UnknownCategoryRefs, report.UnknownBrandRefs)
	}
	fmt.Println(cli.RenderBox("Catalog Seeded", content))

	return nil
}

// catalogFile is the on-disk seed format: all reference data in one JSON
// document.
type catalogFile struct {
	Brands       []brandRecord       `json:"brands"`
	Categories   []categoryRecord    `json:"categories"`
	Transactions []transactionRecord `json:"transactions"`
}

type brandRecord struct {
	Name   string `json:"name"`
	Sector string `json:"sector"`
	ID     int64  `json:"id"`
}

type categoryRecord struct {
	Description string `json:"description"`
	Sector      string `json:"sector"`
	ID          int64  `json:"id"`
}

type transactionRecord struct {
	RecordID    string `json:"record_id"`
	SourceID    string `json:"source_id"`
	MerchantRef string `json:"merchant_ref,omitempty"`
	Narrative   string `json:"narrative"`
	CategoryID  int64  `json:"category_id"`
	BrandID     int64  `json:"brand_id,omitempty"`
}

// parseCatalogFile decodes and validates a seed document. Referential
// integrity is NOT checked here; the catalog tolerates dangling references
// and the post-load report surfaces them.
func parseCatalogFile(data []byte) ([]model.Brand, []model.Category, []model.Transaction, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	brands := make([]model.Brand, 0, len(file.Brands))
	seenBrands := make(map[int64]bool, len(file.Brands))
	for i, b := range file.Brands {
		if b.ID <= 0 {
			return nil, nil, nil, fmt.Errorf("brand %d: id must be positive", i)
		}
		if b.Name == "" {
			return nil, nil, nil, fmt.Errorf("brand %d: name is required", b.ID)
		}
		if seenBrands[b.ID] {
			return nil, nil, nil, fmt.Errorf("duplicate brand id %d", b.ID)
		}
		seenBrands[b.ID] = true
		brands = append(brands, model.Brand{ID: b.ID, Name: b.Name, Sector: b.Sector})
	}

	categories := make([]model.Category, 0, len(file.Categories))
	seenCategories := make(map[int64]bool, len(file.Categories))
	for i, c := range file.Categories {
		if c.ID <= 0 {
			return nil, nil, nil, fmt.Errorf("category %d: id must be positive", i)
		}
		if seenCategories[c.ID] {
			return nil, nil, nil, fmt.Errorf("duplicate category id %d", c.ID)
		}
		seenCategories[c.ID] = true
		categories = append(categories, model.Category{ID: c.ID, Description: c.Description, Sector: c.Sector})
	}

	txns := make([]model.Transaction, 0, len(file.Transactions))
	seenTxns := make(map[string]bool, len(file.Transactions))
	for i, t := range file.Transactions {
		id := model.TransactionID{RecordID: t.RecordID, SourceID: t.SourceID}
		if id.IsZero() {
			return nil, nil, nil, fmt.Errorf("transaction %d: record_id and source_id are required", i)
		}
		if seenTxns[id.Key()] {
			return nil, nil, nil, fmt.Errorf("duplicate transaction id %s", id)
		}
		seenTxns[id.Key()] = true
		txns = append(txns, model.Transaction{
			ID:          id,
			MerchantRef: t.MerchantRef,
			Narrative:   t.Narrative,
			CategoryID:  t.CategoryID,
			BrandID:     t.BrandID,
		})
	}

	return brands, categories, txns, nil
}
