// Command seed loads the default transaction-to-journal mappings into the ERP backend.
// Existing entries (same transaction type and sequence) are left untouched.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/odyssey-erp/ledgerdesk/internal/erpapi"
	"github.com/odyssey-erp/ledgerdesk/internal/mapping"
	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

var defaultMappings = []mapping.Mapping{
	{TransactionType: "PURCHASE", EntrySequence: 1, AccountNature: "INVENTORY", DebitCredit: "D", ValueSource: "TAXABLE_VALUE", DescriptionTemplate: "Purchase {trno} stock"},
	{TransactionType: "PURCHASE", EntrySequence: 2, AccountNature: "GST_INPUT", DebitCredit: "D", ValueSource: "GST_AMOUNT", DescriptionTemplate: "Input GST on {trno}"},
	{TransactionType: "PURCHASE", EntrySequence: 3, AccountNature: "OVERHEAD", DebitCredit: "D", ValueSource: "OVERHEAD_AMOUNT", DescriptionTemplate: "Landed cost on {trno}"},
	{TransactionType: "PURCHASE", EntrySequence: 4, AccountNature: "SUPPLIER", DebitCredit: "C", ValueSource: "INVOICE_TOTAL", DescriptionTemplate: "Payable to {party} for {trno}"},
	{TransactionType: "DEBIT_NOTE", EntrySequence: 1, AccountNature: "SUPPLIER", DebitCredit: "D", ValueSource: "NOTE_TOTAL", DescriptionTemplate: "Debit note {ref}"},
	{TransactionType: "DEBIT_NOTE", EntrySequence: 2, AccountNature: "PURCHASE_RETURN", DebitCredit: "C", ValueSource: "NOTE_TOTAL", DescriptionTemplate: "Return against {ref}"},
	{TransactionType: "CREDIT_NOTE", EntrySequence: 1, AccountNature: "SALES_RETURN", DebitCredit: "D", ValueSource: "NOTE_TOTAL", DescriptionTemplate: "Credit note {ref}"},
	{TransactionType: "CREDIT_NOTE", EntrySequence: 2, AccountNature: "CUSTOMER", DebitCredit: "C", ValueSource: "NOTE_TOTAL", DescriptionTemplate: "Credit to {party}"},
}

type mappingStore interface {
	List(ctx context.Context, sess shared.Session, filter mapping.ListFilter) ([]mapping.Mapping, error)
	Create(ctx context.Context, sess shared.Session, m mapping.Mapping) (mapping.Mapping, error)
	Validate(m mapping.Mapping) error
}

type seedResult struct {
	Created int
	Skipped int
}

func main() {
	file := flag.String("file", "", "JSON array of mappings to load instead of the defaults")
	dryRun := flag.Bool("dry-run", false, "validate and report without writing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	baseURL := os.Getenv("ERP_API_BASE_URL")
	token := os.Getenv("ERP_SERVICE_TOKEN")
	if baseURL == "" || token == "" {
		logger.Error("ERP_API_BASE_URL and ERP_SERVICE_TOKEN are required")
		os.Exit(1)
	}

	rows := defaultMappings
	if *file != "" {
		loaded, err := loadMappings(*file)
		if err != nil {
			logger.Error("load mappings", slog.Any("error", err))
			os.Exit(1)
		}
		rows = loaded
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	svc := mapping.NewService(erpapi.NewClient(baseURL, 30*time.Second, logger))
	sess := shared.Session{Token: token, Capabilities: policy.Full()}
	res, err := seed(ctx, svc, sess, rows, *dryRun)
	if err != nil {
		logger.Error("seed mappings", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed complete", slog.Int("created", res.Created), slog.Int("skipped", res.Skipped), slog.Bool("dry_run", *dryRun))
}

func loadMappings(path string) ([]mapping.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []mapping.Mapping
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

func seed(ctx context.Context, store mappingStore, sess shared.Session, rows []mapping.Mapping, dryRun bool) (seedResult, error) {
	existing, err := store.List(ctx, sess, mapping.ListFilter{})
	if err != nil {
		return seedResult{}, fmt.Errorf("list mappings: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[seedKey(m)] = struct{}{}
	}

	var res seedResult
	for _, m := range rows {
		if _, ok := seen[seedKey(m)]; ok {
			res.Skipped++
			continue
		}
		if dryRun {
			if err := store.Validate(mapping.Normalize(m)); err != nil {
				return res, fmt.Errorf("validate %s #%d: %w", m.TransactionType, m.EntrySequence, err)
			}
			res.Created++
			continue
		}
		if _, err := store.Create(ctx, sess, m); err != nil {
			return res, fmt.Errorf("create %s #%d: %w", m.TransactionType, m.EntrySequence, err)
		}
		seen[seedKey(m)] = struct{}{}
		res.Created++
	}
	return res, nil
}

func seedKey(m mapping.Mapping) string {
	return fmt.Sprintf("%s#%d", strings.ToUpper(strings.TrimSpace(m.TransactionType)), m.EntrySequence)
}
