package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fodouopn/gsa-manager/internal/app"
	"github.com/shopspring/decimal"
)

const usage = "Available: stock, due <client-id>, validate-invoice <id>, validate-container <id>, reconcile <container-id>, reminders [YYYY-MM-DD], stock-value [YYYY-MM-DD], dues [YYYY-MM-DD], compact"

// Run executes a one-shot CLI command, writing human-readable output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "stock", "st":
		levels, err := svc.StockLevels(ctx, app.ListRequest{})
		if err != nil {
			return fmt.Errorf("failed to load stock levels: %w", err)
		}
		fmt.Fprintln(out, rule("="))
		fmt.Fprintf(out, "  %-6s %-34s %12s %5s\n", "ID", "PRODUCT", "QTY", "LOW")
		fmt.Fprintln(out, rule("-"))
		for _, l := range levels {
			low := ""
			if l.IsLow {
				low = "!"
			}
			fmt.Fprintf(out, "  %-6d %-34s %12s %5s\n", l.ProductID, l.ProductName, l.Quantity.String(), low)
		}
		fmt.Fprintln(out, rule("="))

	case "due":
		id, err := idArg(args, "due <client-id>")
		if err != nil {
			return err
		}
		b, err := svc.ClientBalance(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load client balance: %w", err)
		}
		fmt.Fprintf(out, "Client %d\n", b.ClientID)
		fmt.Fprintf(out, "  Due  : %12s\n", b.Due.StringFixed(2))
		for _, c := range b.Owed.Contributions {
			fmt.Fprintf(out, "  Owed : %12s  (%s)\n", c.Amount.StringFixed(2), c.Source)
		}
		fmt.Fprintf(out, "  Net  : %12s\n", b.Net.StringFixed(2))

	case "validate-invoice", "vi":
		id, err := idArg(args, "validate-invoice <id>")
		if err != nil {
			return err
		}
		inv, err := svc.ValidateInvoice(ctx, id)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "Invoice %s validated. Total %s.\n", inv.Number, inv.Totals.Total.StringFixed(2))

	case "validate-container", "vc":
		id, err := idArg(args, "validate-container <id>")
		if err != nil {
			return err
		}
		c, err := svc.ValidateContainer(ctx, id)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "Container %s validated.\n", c.Ref)

	case "reconcile":
		id, err := idArg(args, "reconcile <container-id>")
		if err != nil {
			return err
		}
		result, err := svc.ReconcileContainer(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to reconcile container: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)

	case "reminders":
		asOf := time.Now()
		if len(args) > 1 {
			t, err := time.Parse("2006-01-02", args[1])
			if err != nil {
				return fmt.Errorf("usage: reminders [YYYY-MM-DD]: %w", err)
			}
			asOf = t
		}
		invoices, err := svc.DueReminders(ctx, asOf)
		if err != nil {
			return fmt.Errorf("failed to list reminders: %w", err)
		}
		for _, inv := range invoices {
			fmt.Fprintf(out, "  %-16s %-30s %12s\n", inv.Number, inv.ClientName, inv.Balance.StringFixed(2))
		}
		fmt.Fprintf(out, "%d invoice(s) due for a reminder.\n", len(invoices))

	case "stock-value":
		req := app.ReportRequest{}
		if len(args) > 1 {
			req.At = args[1]
		}
		v, err := svc.StockValuation(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to value stock: %w", err)
		}
		for _, l := range v.Lines {
			fmt.Fprintf(out, "  %-34s %10s x %8s = %12s\n", l.ProductName, l.Quantity.String(),
				l.UnitPrice.StringFixed(2), l.Value.StringFixed(2))
		}
		fmt.Fprintf(out, "Stock value: %s\n", v.Total.StringFixed(2))

	case "dues":
		req := app.ReportRequest{}
		if len(args) > 1 {
			req.At = args[1]
		}
		dues, err := svc.DuesAt(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list dues: %w", err)
		}
		total := decimal.Zero
		for _, d := range dues {
			fmt.Fprintf(out, "  %-6d %-34s %3d %12s\n", d.ClientID, d.ClientName, d.InvoiceCount, d.Due.StringFixed(2))
			total = total.Add(d.Due)
		}
		fmt.Fprintf(out, "Total due: %s\n", total.StringFixed(2))

	case "compact":
		result, err := svc.CompactStock(ctx)
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}
		fmt.Fprintf(out, "Compacted %d product(s).\n", result.Products)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

func idArg(args []string, form string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: %s", form)
	}
	id, err := strconv.Atoi(args[1])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("usage: %s", form)
	}
	return id, nil
}

func rule(ch string) string {
	return strings.Repeat(ch, 64)
}
