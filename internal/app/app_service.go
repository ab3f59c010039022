package app

import (
	"context"
	"strings"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Services bundles the core services behind the application facade.
type Services struct {
	Catalog    core.CatalogService
	Pricing    core.PricingResolver
	Stock      core.StockLedger
	Containers core.ContainerService
	Purchases  core.PurchaseLedger
	Invoices   core.InvoiceEngine
	Payments   core.PaymentAggregator
}

type appService struct {
	core Services
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(svc Services) ApplicationService {
	return &appService{core: svc}
}

// NewServices wires the core services over one pool. Every service shares the
// same stock ledger so cache invalidation stays consistent.
func NewServices(pool *pgxpool.Pool, balances core.BalanceCache, opts core.InvoiceOptions, sink core.AuditSink) Services {
	stock := core.NewStockLedger(pool, balances, sink)
	pricing := core.NewPricingResolver(pool, sink)
	return Services{
		Catalog:    core.NewCatalogService(pool, sink),
		Pricing:    pricing,
		Stock:      stock,
		Containers: core.NewContainerService(pool, stock, sink),
		Purchases:  core.NewPurchaseLedger(pool, stock, sink),
		Invoices:   core.NewInvoiceEngine(pool, stock, pricing, opts, sink),
		Payments:   core.NewPaymentAggregator(pool, opts.TaxRates, sink),
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (r ListRequest) page() core.PageRequest {
	return core.PageRequest{Page: r.Page, PageSize: r.PageSize}
}

func (r ListRequest) dateRange() (from, to *time.Time, err error) {
	if from, err = parseOptionalDate("from", r.From); err != nil {
		return nil, nil, err
	}
	if to, err = parseOptionalDate("to", r.To); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// ── Clients and products ─────────────────────────────────────────────────────

func clientInput(req ClientRequest) core.ClientInput {
	return core.ClientInput{
		Name:        strings.TrimSpace(req.Name),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Address:     req.Address,
		IsActive:    boolOr(req.IsActive, true),
	}
}

func (s *appService) CreateClient(ctx context.Context, req ClientRequest) (*core.Client, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Catalog.CreateClient(ctx, clientInput(req))
}

func (s *appService) UpdateClient(ctx context.Context, id int, req ClientRequest) (*core.Client, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Catalog.UpdateClient(ctx, id, clientInput(req))
}

func (s *appService) GetClient(ctx context.Context, id int) (*core.Client, error) {
	return s.core.Catalog.GetClient(ctx, id)
}

func (s *appService) ListClients(ctx context.Context, req ListRequest) (*core.Page[core.Client], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Catalog.ListClients(ctx, core.ClientFilter{
		Search:          req.Search,
		IncludeInactive: req.IncludeInactive,
		PageRequest:     req.page(),
	})
}

func productInput(req ProductRequest) core.ProductInput {
	unit := core.SaleUnit(req.SaleUnit)
	if unit == "" {
		unit = core.UnitBottle
	}
	return core.ProductInput{
		Name:              strings.TrimSpace(req.Name),
		SaleUnit:          unit,
		Category:          core.ProductCategory(req.Category),
		BasePrice:         req.BasePrice,
		LowStockThreshold: req.LowStockThreshold,
		IsActive:          boolOr(req.IsActive, true),
	}
}

func (s *appService) CreateProduct(ctx context.Context, req ProductRequest) (*core.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Catalog.CreateProduct(ctx, productInput(req))
}

func (s *appService) UpdateProduct(ctx context.Context, id int, req ProductRequest) (*core.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Catalog.UpdateProduct(ctx, id, productInput(req))
}

func (s *appService) GetProduct(ctx context.Context, id int) (*core.Product, error) {
	return s.core.Catalog.GetProduct(ctx, id)
}

func (s *appService) ListProducts(ctx context.Context, req ListRequest) (*core.Page[core.Product], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Catalog.ListProducts(ctx, core.ProductFilter{
		Search:          req.Search,
		Category:        core.ProductCategory(req.Category),
		IncludeInactive: req.IncludeInactive,
		PageRequest:     req.page(),
	})
}

// ── Pricing ──────────────────────────────────────────────────────────────────

func (s *appService) SetClientPrice(ctx context.Context, clientID, productID int, req PriceRequest) (*core.ClientPrice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Pricing.SetClientPrice(ctx, clientID, productID, req.Price)
}

func (s *appService) RemoveClientPrice(ctx context.Context, clientID, productID int) error {
	return s.core.Pricing.RemoveClientPrice(ctx, clientID, productID)
}

func (s *appService) ListClientPrices(ctx context.Context, clientID int) ([]core.ClientPrice, error) {
	return s.core.Pricing.ListClientPrices(ctx, clientID)
}

func (s *appService) SetBasePrice(ctx context.Context, productID int, req PriceRequest) (*core.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Pricing.SetBasePrice(ctx, productID, req.Price)
}

func (s *appService) PriceHistory(ctx context.Context, productID int) ([]core.PriceChange, error) {
	return s.core.Pricing.PriceHistory(ctx, productID)
}

// ── Stock ────────────────────────────────────────────────────────────────────

func (s *appService) StockLevels(ctx context.Context, req ListRequest) ([]core.StockLevel, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Stock.Balances(ctx, core.StockFilter{
		Search:          req.Search,
		Category:        core.ProductCategory(req.Category),
		LowOnly:         req.LowOnly,
		IncludeInactive: req.IncludeInactive,
	})
}

func (s *appService) ProductStock(ctx context.Context, productID int, at string) (*StockBalanceResult, error) {
	product, err := s.core.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	res := &StockBalanceResult{ProductID: product.ID, ProductName: product.Name}

	day, err := parseOptionalDate("at", at)
	if err != nil {
		return nil, err
	}
	if day == nil {
		res.Quantity, err = s.core.Stock.CurrentBalance(ctx, productID)
		return res, err
	}

	end := endOfDay(*day)
	res.At = &end
	res.Quantity, err = s.core.Stock.BalanceAt(ctx, productID, end)
	return res, err
}

func (s *appService) StockMovements(ctx context.Context, req ListRequest) (*core.Page[core.StockMovement], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, to, err := req.dateRange()
	if err != nil {
		return nil, err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	return s.core.Stock.History(ctx, core.MovementFilter{
		ProductID:   req.ProductID,
		Type:        core.MovementType(req.Type),
		From:        from,
		To:          to,
		PageRequest: req.page(),
	})
}

func (s *appService) AdjustStock(ctx context.Context, req StockAdjustmentRequest) (*core.StockMovement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Stock.Adjust(ctx, req.ProductID, req.Quantity, strings.TrimSpace(req.Reason))
}

func (s *appService) RecordBreakage(ctx context.Context, req StockAdjustmentRequest) (*core.StockMovement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Stock.RecordBreakage(ctx, req.ProductID, req.Quantity, strings.TrimSpace(req.Reason))
}

func (s *appService) CompactStock(ctx context.Context) (*CompactionResult, error) {
	n, err := s.core.Stock.CompactAll(ctx)
	if err != nil {
		return nil, err
	}
	return &CompactionResult{Products: n}, nil
}

// ── Containers ───────────────────────────────────────────────────────────────

func (s *appService) CreateContainer(ctx context.Context, req ContainerRequest) (*core.Container, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	eta, err := parseDate("estimated_arrival", req.EstimatedArrival)
	if err != nil {
		return nil, err
	}
	return s.core.Containers.Create(ctx, core.ContainerInput{
		Ref:              strings.TrimSpace(req.Ref),
		EstimatedArrival: eta,
		Notes:            req.Notes,
	})
}

func (s *appService) GetContainer(ctx context.Context, id int) (*core.Container, error) {
	return s.core.Containers.Get(ctx, id)
}

func (s *appService) ListContainers(ctx context.Context, req ListRequest) (*core.Page[core.Container], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, to, err := req.dateRange()
	if err != nil {
		return nil, err
	}
	return s.core.Containers.List(ctx, core.ContainerFilter{
		Status:      core.ContainerStatus(req.Status),
		Search:      req.Search,
		From:        from,
		To:          to,
		PageRequest: req.page(),
	})
}

func (s *appService) SetContainerArrival(ctx context.Context, id int, req ArrivalRequest) (*core.Container, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	return s.core.Containers.SetActualArrival(ctx, id, date)
}

func (s *appService) SetManifestLine(ctx context.Context, id, productID int, req ManifestLineRequest) (*core.Container, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Containers.AddManifestLine(ctx, id, productID, req.PlannedQty)
}

func (s *appService) RemoveManifestLine(ctx context.Context, id, productID int) (*core.Container, error) {
	return s.core.Containers.RemoveManifestLine(ctx, id, productID)
}

func (s *appService) SetReceivedLine(ctx context.Context, id, productID int, req ReceivedLineRequest) (*core.Container, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Containers.AddReceivedLine(ctx, id, core.ReceivedLineInput{
		ProductID:   productID,
		ReceivedQty: req.ReceivedQty,
		BreakageQty: req.BreakageQty,
		Comment:     strings.TrimSpace(req.Comment),
	})
}

func (s *appService) RemoveReceivedLine(ctx context.Context, id, productID int) (*core.Container, error) {
	return s.core.Containers.RemoveReceivedLine(ctx, id, productID)
}

func (s *appService) ReconcileContainer(ctx context.Context, id int) (*ReconciliationResult, error) {
	c, err := s.core.Containers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	discrepancies, err := s.core.Containers.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &ReconciliationResult{ContainerID: c.ID, Ref: c.Ref, Status: c.Status, Discrepancies: discrepancies}
	for _, d := range discrepancies {
		switch d.Kind {
		case core.DiscrepancyMatch:
			res.Matches++
		case core.DiscrepancyShort:
			res.Shortages++
		case core.DiscrepancyOver:
			res.Overages++
		}
	}
	return res, nil
}

func (s *appService) ValidateContainer(ctx context.Context, id int) (*core.Container, error) {
	return s.core.Containers.Validate(ctx, id)
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, req InvoiceRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	issuedOn, err := parseDate("issued_on", req.IssuedOn)
	if err != nil {
		return nil, err
	}
	return s.core.Invoices.Create(ctx, core.InvoiceInput{
		ClientID: req.ClientID,
		Type:     core.InvoiceType(req.Type),
		IssuedOn: issuedOn,
	})
}

func (s *appService) GetInvoice(ctx context.Context, id int) (*core.Invoice, error) {
	return s.core.Invoices.Get(ctx, id)
}

func (s *appService) ListInvoices(ctx context.Context, req ListRequest) (*core.Page[core.Invoice], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, to, err := req.dateRange()
	if err != nil {
		return nil, err
	}
	return s.core.Invoices.List(ctx, core.InvoiceFilter{
		ClientID:    req.ClientID,
		Status:      core.InvoiceStatus(req.Status),
		Search:      req.Search,
		From:        from,
		To:          to,
		PageRequest: req.page(),
	})
}

func (s *appService) AddInvoiceLine(ctx context.Context, id int, req InvoiceLineRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Invoices.AddLine(ctx, id, req.ProductID, req.Quantity)
}

func (s *appService) UpdateInvoiceLine(ctx context.Context, id, lineID int, req LineQtyRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Invoices.UpdateLineQty(ctx, id, lineID, req.Quantity)
}

func (s *appService) RemoveInvoiceLine(ctx context.Context, id, lineID int) (*core.Invoice, error) {
	return s.core.Invoices.RemoveLine(ctx, id, lineID)
}

func (s *appService) ToggleInvoiceTax(ctx context.Context, id int) (*core.Invoice, error) {
	return s.core.Invoices.ToggleTaxIncluded(ctx, id)
}

func (s *appService) ValidateInvoice(ctx context.Context, id int) (*core.Invoice, error) {
	return s.core.Invoices.Validate(ctx, id)
}

func (s *appService) CancelInvoice(ctx context.Context, id int) (*core.Invoice, error) {
	return s.core.Invoices.Cancel(ctx, id)
}

func (s *appService) ContestInvoice(ctx context.Context, id int, req ContestRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Invoices.Contest(ctx, id, core.ContestInput{Reason: req.Reason, Name: req.Name, Email: req.Email})
}

func (s *appService) ResolveContestation(ctx context.Context, id int, req ResolveRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Invoices.ResolveContestation(ctx, id, req.Resolution)
}

func (s *appService) PostponeReminder(ctx context.Context, id int, req ReminderRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	return s.core.Invoices.PostponeReminder(ctx, id, date)
}

func (s *appService) DueReminders(ctx context.Context, asOf time.Time) ([]core.Invoice, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return s.core.Invoices.DueReminders(ctx, asOf)
}

func (s *appService) IssueAcceptanceToken(ctx context.Context, id int) (*core.AcceptanceToken, error) {
	return s.core.Invoices.IssueAcceptanceToken(ctx, id)
}

func (s *appService) AcceptanceSummary(ctx context.Context, token string) (*core.Invoice, error) {
	return s.core.Invoices.AcceptanceSummary(ctx, token)
}

func (s *appService) AcceptInvoice(ctx context.Context, token string, req AcceptRequest) (*core.Acceptance, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Invoices.AcceptViaToken(ctx, token, req.AcceptedBy)
}

func (s *appService) ContestViaToken(ctx context.Context, token string, req ContestRequest) (*core.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Invoices.ContestViaToken(ctx, token, core.ContestInput{Reason: req.Reason, Name: req.Name, Email: req.Email})
}

// ── Payments and balances ────────────────────────────────────────────────────

func paymentInput(req PaymentRequest) (core.PaymentInput, error) {
	paidOn, err := parseDate("paid_on", req.PaidOn)
	if err != nil {
		return core.PaymentInput{}, err
	}
	return core.PaymentInput{
		Amount:    req.Amount,
		Method:    core.PaymentMethod(req.Method),
		PaidOn:    paidOn,
		Reference: req.Reference,
	}, nil
}

func (s *appService) RecordPayment(ctx context.Context, invoiceID int, req PaymentRequest) (*core.Payment, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	in, err := paymentInput(req)
	if err != nil {
		return nil, err
	}
	return s.core.Payments.RecordPayment(ctx, invoiceID, in)
}

func (s *appService) ListPayments(ctx context.Context, invoiceID int) ([]core.Payment, error) {
	return s.core.Payments.ListPayments(ctx, invoiceID)
}

func (s *appService) InvoiceBalance(ctx context.Context, invoiceID int) (*core.InvoiceBalance, error) {
	return s.core.Payments.InvoiceBalance(ctx, invoiceID)
}

func (s *appService) IssueCreditNote(ctx context.Context, req CreditNoteRequest) (*core.CreditNote, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Payments.IssueCreditNote(ctx, core.CreditNoteInput{
		ClientID:        req.ClientID,
		Amount:          req.Amount,
		OriginInvoiceID: req.OriginInvoiceID,
		Reason:          req.Reason,
	})
}

func (s *appService) CreditNoteFromInvoice(ctx context.Context, invoiceID int, req CreditNoteFromInvoiceRequest) (*core.CreditNote, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Payments.CreditNoteFromInvoice(ctx, invoiceID, req.Reason)
}

func (s *appService) RefundCreditNote(ctx context.Context, creditNoteID int, req RefundRequest) (*core.CreditNote, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	refundedOn, err := parseDate("refunded_on", req.RefundedOn)
	if err != nil {
		return nil, err
	}
	return s.core.Payments.RefundCreditNote(ctx, creditNoteID, core.RefundInput{
		Amount:     req.Amount,
		Method:     core.PaymentMethod(req.Method),
		RefundedOn: refundedOn,
	})
}

func (s *appService) ListCreditNotes(ctx context.Context, clientID int) ([]core.CreditNote, error) {
	return s.core.Payments.ListCreditNotes(ctx, clientID)
}

func (s *appService) ClientBalance(ctx context.Context, clientID int) (*ClientBalanceResult, error) {
	due, err := s.core.Payments.ClientTotalDue(ctx, clientID)
	if err != nil {
		return nil, err
	}
	owed, err := s.core.Payments.ClientTotalOwed(ctx, clientID)
	if err != nil {
		return nil, err
	}
	total := owed.Total()
	return &ClientBalanceResult{
		ClientID:  clientID,
		Due:       due,
		Owed:      *owed,
		OwedTotal: total,
		Net:       due.Sub(total),
	}, nil
}

func (s *appService) ClientStatement(ctx context.Context, clientID int) (*core.ClientStatement, error) {
	return s.core.Payments.ClientStatement(ctx, clientID)
}

func (s *appService) Receivables(ctx context.Context) ([]core.Receivable, error) {
	return s.core.Payments.Receivables(ctx)
}

// ── Reports ──────────────────────────────────────────────────────────────────

// salesWindow is the default range of a sales summary.
const salesWindow = 30

// endOfDay is the last instant of day, so a dated report includes the whole day.
func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func (s *appService) StockValuation(ctx context.Context, req ReportRequest) (*core.StockValuation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	day, err := parseOptionalDate("at", req.At)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return s.core.Stock.Valuation(ctx, nil)
	}
	at := endOfDay(*day)
	return s.core.Stock.Valuation(ctx, &at)
}

func (s *appService) SalesSummary(ctx context.Context, req ReportRequest) (*core.SalesSummary, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, err := parseDate("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("to", req.To)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -salesWindow)
	}
	return s.core.Payments.SalesSummary(ctx, core.SalesQuery{From: from, To: to, Period: core.SalesPeriod(req.Period)})
}

func (s *appService) TopProducts(ctx context.Context, req ReportRequest) ([]core.ProductSales, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, err := parseOptionalDate("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate("to", req.To)
	if err != nil {
		return nil, err
	}
	if to != nil {
		end := endOfDay(*to)
		to = &end
	}
	return s.core.Payments.TopProducts(ctx, core.TopProductsQuery{From: from, To: to, Limit: req.Limit})
}

func (s *appService) DuesAt(ctx context.Context, req ReportRequest) ([]core.Receivable, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	at, err := parseDate("at", req.At)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	return s.core.Payments.DuesAt(ctx, at)
}

// ── Purchases ────────────────────────────────────────────────────────────────

func (s *appService) CreatePurchase(ctx context.Context, req PurchaseRequest) (*core.Purchase, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	purchasedOn, err := parseDate("purchased_on", req.PurchasedOn)
	if err != nil {
		return nil, err
	}
	return s.core.Purchases.Create(ctx, core.PurchaseInput{
		SupplierID:  req.SupplierID,
		PurchasedOn: purchasedOn,
		Notes:       req.Notes,
	})
}

func (s *appService) GetPurchase(ctx context.Context, id int) (*core.Purchase, error) {
	return s.core.Purchases.Get(ctx, id)
}

func (s *appService) ListPurchases(ctx context.Context, req ListRequest) (*core.Page[core.Purchase], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, to, err := req.dateRange()
	if err != nil {
		return nil, err
	}
	return s.core.Purchases.List(ctx, core.PurchaseFilter{
		SupplierID:  req.ClientID,
		Status:      core.PurchaseStatus(req.Status),
		Search:      req.Search,
		From:        from,
		To:          to,
		PageRequest: req.page(),
	})
}

func (s *appService) SetPurchaseLine(ctx context.Context, id, productID int, req PurchaseLineRequest) (*core.Purchase, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.core.Purchases.AddLine(ctx, id, productID, req.Quantity, req.UnitCost)
}

func (s *appService) RemovePurchaseLine(ctx context.Context, id, productID int) (*core.Purchase, error) {
	return s.core.Purchases.RemoveLine(ctx, id, productID)
}

func (s *appService) ValidatePurchase(ctx context.Context, id int) (*core.Purchase, error) {
	return s.core.Purchases.Validate(ctx, id)
}

func (s *appService) RecordPurchasePayment(ctx context.Context, id int, req PaymentRequest) (*core.PurchasePayment, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	in, err := paymentInput(req)
	if err != nil {
		return nil, err
	}
	return s.core.Purchases.RecordPayment(ctx, id, in.Amount, in.Method, in.PaidOn, in.Reference)
}

func (s *appService) ListPurchasePayments(ctx context.Context, id int) ([]core.PurchasePayment, error) {
	return s.core.Purchases.ListPayments(ctx, id)
}

func (s *appService) SupplierDebt(ctx context.Context, supplierID int) (*core.SupplierDebt, error) {
	return s.core.Purchases.SupplierDebtSummary(ctx, supplierID)
}

