package app

import (
	"context"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// It validates requests, converts wire formats to core inputs and delegates to
// the core services. Implementations contain no presentation logic.
type ApplicationService interface {
	// ── Clients and products ─────────────────────────────────────────────────

	CreateClient(ctx context.Context, req ClientRequest) (*core.Client, error)
	UpdateClient(ctx context.Context, id int, req ClientRequest) (*core.Client, error)
	GetClient(ctx context.Context, id int) (*core.Client, error)
	ListClients(ctx context.Context, req ListRequest) (*core.Page[core.Client], error)

	CreateProduct(ctx context.Context, req ProductRequest) (*core.Product, error)
	UpdateProduct(ctx context.Context, id int, req ProductRequest) (*core.Product, error)
	GetProduct(ctx context.Context, id int) (*core.Product, error)
	ListProducts(ctx context.Context, req ListRequest) (*core.Page[core.Product], error)

	// ── Pricing ──────────────────────────────────────────────────────────────

	SetClientPrice(ctx context.Context, clientID, productID int, req PriceRequest) (*core.ClientPrice, error)
	RemoveClientPrice(ctx context.Context, clientID, productID int) error
	ListClientPrices(ctx context.Context, clientID int) ([]core.ClientPrice, error)
	SetBasePrice(ctx context.Context, productID int, req PriceRequest) (*core.Product, error)
	PriceHistory(ctx context.Context, productID int) ([]core.PriceChange, error)

	// ── Stock ────────────────────────────────────────────────────────────────

	StockLevels(ctx context.Context, req ListRequest) ([]core.StockLevel, error)
	// ProductStock returns the current balance, or the balance at the end of day at.
	ProductStock(ctx context.Context, productID int, at string) (*StockBalanceResult, error)
	StockMovements(ctx context.Context, req ListRequest) (*core.Page[core.StockMovement], error)
	AdjustStock(ctx context.Context, req StockAdjustmentRequest) (*core.StockMovement, error)
	RecordBreakage(ctx context.Context, req StockAdjustmentRequest) (*core.StockMovement, error)
	CompactStock(ctx context.Context) (*CompactionResult, error)

	// ── Containers ───────────────────────────────────────────────────────────

	CreateContainer(ctx context.Context, req ContainerRequest) (*core.Container, error)
	GetContainer(ctx context.Context, id int) (*core.Container, error)
	ListContainers(ctx context.Context, req ListRequest) (*core.Page[core.Container], error)
	SetContainerArrival(ctx context.Context, id int, req ArrivalRequest) (*core.Container, error)
	SetManifestLine(ctx context.Context, id, productID int, req ManifestLineRequest) (*core.Container, error)
	RemoveManifestLine(ctx context.Context, id, productID int) (*core.Container, error)
	SetReceivedLine(ctx context.Context, id, productID int, req ReceivedLineRequest) (*core.Container, error)
	RemoveReceivedLine(ctx context.Context, id, productID int) (*core.Container, error)
	ReconcileContainer(ctx context.Context, id int) (*ReconciliationResult, error)
	ValidateContainer(ctx context.Context, id int) (*core.Container, error)

	// ── Invoices ─────────────────────────────────────────────────────────────

	CreateInvoice(ctx context.Context, req InvoiceRequest) (*core.Invoice, error)
	GetInvoice(ctx context.Context, id int) (*core.Invoice, error)
	ListInvoices(ctx context.Context, req ListRequest) (*core.Page[core.Invoice], error)
	AddInvoiceLine(ctx context.Context, id int, req InvoiceLineRequest) (*core.Invoice, error)
	UpdateInvoiceLine(ctx context.Context, id, lineID int, req LineQtyRequest) (*core.Invoice, error)
	RemoveInvoiceLine(ctx context.Context, id, lineID int) (*core.Invoice, error)
	ToggleInvoiceTax(ctx context.Context, id int) (*core.Invoice, error)
	ValidateInvoice(ctx context.Context, id int) (*core.Invoice, error)
	CancelInvoice(ctx context.Context, id int) (*core.Invoice, error)
	ContestInvoice(ctx context.Context, id int, req ContestRequest) (*core.Invoice, error)
	ResolveContestation(ctx context.Context, id int, req ResolveRequest) (*core.Invoice, error)
	PostponeReminder(ctx context.Context, id int, req ReminderRequest) (*core.Invoice, error)
	DueReminders(ctx context.Context, asOf time.Time) ([]core.Invoice, error)

	IssueAcceptanceToken(ctx context.Context, id int) (*core.AcceptanceToken, error)
	AcceptanceSummary(ctx context.Context, token string) (*core.Invoice, error)
	AcceptInvoice(ctx context.Context, token string, req AcceptRequest) (*core.Acceptance, error)
	ContestViaToken(ctx context.Context, token string, req ContestRequest) (*core.Invoice, error)

	// ── Payments and balances ────────────────────────────────────────────────

	RecordPayment(ctx context.Context, invoiceID int, req PaymentRequest) (*core.Payment, error)
	ListPayments(ctx context.Context, invoiceID int) ([]core.Payment, error)
	InvoiceBalance(ctx context.Context, invoiceID int) (*core.InvoiceBalance, error)
	IssueCreditNote(ctx context.Context, req CreditNoteRequest) (*core.CreditNote, error)
	CreditNoteFromInvoice(ctx context.Context, invoiceID int, req CreditNoteFromInvoiceRequest) (*core.CreditNote, error)
	RefundCreditNote(ctx context.Context, creditNoteID int, req RefundRequest) (*core.CreditNote, error)
	ListCreditNotes(ctx context.Context, clientID int) ([]core.CreditNote, error)
	ClientBalance(ctx context.Context, clientID int) (*ClientBalanceResult, error)
	ClientStatement(ctx context.Context, clientID int) (*core.ClientStatement, error)
	Receivables(ctx context.Context) ([]core.Receivable, error)

	// ── Reports ──────────────────────────────────────────────────────────────

	// StockValuation values stock now, or at the end of day req.At.
	StockValuation(ctx context.Context, req ReportRequest) (*core.StockValuation, error)
	// SalesSummary defaults to the last 30 days by month.
	SalesSummary(ctx context.Context, req ReportRequest) (*core.SalesSummary, error)
	TopProducts(ctx context.Context, req ReportRequest) ([]core.ProductSales, error)
	// DuesAt lists client dues at the end of day req.At, today by default.
	DuesAt(ctx context.Context, req ReportRequest) ([]core.Receivable, error)

	// ── Purchases ────────────────────────────────────────────────────────────

	CreatePurchase(ctx context.Context, req PurchaseRequest) (*core.Purchase, error)
	GetPurchase(ctx context.Context, id int) (*core.Purchase, error)
	ListPurchases(ctx context.Context, req ListRequest) (*core.Page[core.Purchase], error)
	SetPurchaseLine(ctx context.Context, id, productID int, req PurchaseLineRequest) (*core.Purchase, error)
	RemovePurchaseLine(ctx context.Context, id, productID int) (*core.Purchase, error)
	ValidatePurchase(ctx context.Context, id int) (*core.Purchase, error)
	RecordPurchasePayment(ctx context.Context, id int, req PaymentRequest) (*core.PurchasePayment, error)
	ListPurchasePayments(ctx context.Context, id int) ([]core.PurchasePayment, error)
	SupplierDebt(ctx context.Context, supplierID int) (*core.SupplierDebt, error)
}
