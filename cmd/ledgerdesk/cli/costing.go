package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

// CostingInput is the file format read by the costing preview command.
type CostingInput struct {
	Items     []costing.ItemLine    `json:"items"`
	Overheads []costing.OverheadRow `json:"overheads"`
}

// CostingPreviewOptions defines the flags of the costing preview command.
type CostingPreviewOptions struct {
	InputPath  string
	XLSXPath   string
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// CostingPreviewSummary is the JSON output of the costing preview command.
type CostingPreviewSummary struct {
	Allocation    []costing.Allocation   `json:"allocation"`
	TotalOverhead decimal.Decimal        `json:"total_overhead"`
	Drift         decimal.Decimal        `json:"drift"`
	Invoice       costing.InvoiceSummary `json:"invoice"`
}

// CostingPreviewCommand allocates overheads for a purchase described in a JSON file without
// touching the ERP backend. It exits 10 when the items carry no taxable value.
func CostingPreviewCommand(opts CostingPreviewOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	in, err := readCostingInput(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "costing preview: %v\n", err)
		return 1
	}
	if len(in.Items) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "costing preview: input has no items")
		return 1
	}
	for i := range in.Items {
		in.Items[i].Recalc()
	}
	allocs := costing.Allocate(in.Items, in.Overheads)
	summary := CostingPreviewSummary{
		Allocation:    allocs,
		TotalOverhead: costing.TotalOverhead(in.Overheads),
		Drift:         costing.Drift(allocs, in.Overheads),
		Invoice:       costing.InvoiceTotals(in.Items),
	}

	if opts.XLSXPath != "" {
		data, err := costing.CostSheet(allocs, in.Overheads)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "costing preview: render sheet: %v\n", err)
			return 1
		}
		if err := os.WriteFile(opts.XLSXPath, data, 0o644); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "costing preview: write sheet: %v\n", err)
			return 1
		}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "costing preview: encode json: %v\n", err)
			return 1
		}
	} else {
		renderCostingHuman(opts.Stdout, summary)
	}
	if summary.Invoice.Taxable.IsZero() {
		return 10
	}
	return 0
}

func readCostingInput(opts CostingPreviewOptions) (CostingInput, error) {
	var r io.Reader
	switch opts.InputPath {
	case "", "-":
		if opts.Stdin == nil {
			opts.Stdin = os.Stdin
		}
		r = opts.Stdin
	default:
		f, err := os.Open(opts.InputPath)
		if err != nil {
			return CostingInput{}, err
		}
		defer f.Close()
		r = f
	}
	var in CostingInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return CostingInput{}, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}

func renderCostingHuman(out io.Writer, s CostingPreviewSummary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Sr\tItem\tQty\tRate\tTaxable\tOverhead\tNet Rate\tLine Total\t")
	for _, a := range s.Allocation {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			a.Srno, a.ItemName, a.Qty.String(), money.Format(a.Rate), money.Format(a.TaxableValue),
			money.Format(a.OHAmount), money.Format(a.NetRate), money.Format(a.LineTotal))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(out, "Overheads: %s\n", money.Format(s.TotalOverhead))
	if !s.Drift.IsZero() {
		_, _ = fmt.Fprintf(out, "Rounding drift: %s\n", money.Format(s.Drift))
	}
	_, _ = fmt.Fprintf(out, "Invoice total: %s\n", money.Format(s.Invoice.FinalTotal))
}
