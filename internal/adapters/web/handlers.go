package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fodouopn/gsa-manager/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	logger *logrus.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, logger *logrus.Logger) http.Handler {
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// ── Acceptance links (public, no actor) ──────────────────────────────────
	r.Get("/api/acceptance/{token}", h.apiAcceptanceSummary)
	r.Post("/api/acceptance/{token}", h.apiAcceptInvoice)
	r.Post("/api/acceptance/{token}/contest", h.apiContestViaToken)

	r.Group(func(r chi.Router) {
		r.Use(Actor)

		// ── Clients ──────────────────────────────────────────────────────────
		r.Get("/api/clients", h.apiListClients)
		r.Post("/api/clients", h.apiCreateClient)
		r.Get("/api/clients/{id}", h.apiGetClient)
		r.Put("/api/clients/{id}", h.apiUpdateClient)
		r.Get("/api/clients/{id}/balance", h.apiClientBalance)
		r.Get("/api/clients/{id}/statement", h.apiClientStatement)
		r.Get("/api/clients/{id}/credit-notes", h.apiListCreditNotes)
		r.Get("/api/clients/{id}/supplier-debt", h.apiSupplierDebt)
		r.Get("/api/clients/{id}/prices", h.apiListClientPrices)
		r.Put("/api/clients/{id}/prices/{productID}", h.apiSetClientPrice)
		r.Delete("/api/clients/{id}/prices/{productID}", h.apiRemoveClientPrice)
		r.Get("/api/receivables", h.apiReceivables)

		// ── Reports ──────────────────────────────────────────────────────────
		r.Get("/api/reports/stock-value", h.apiStockValuation)
		r.Get("/api/reports/sales", h.apiSalesSummary)
		r.Get("/api/reports/top-products", h.apiTopProducts)
		r.Get("/api/reports/dues", h.apiDuesAt)

		// ── Products ─────────────────────────────────────────────────────────
		r.Get("/api/products", h.apiListProducts)
		r.Post("/api/products", h.apiCreateProduct)
		r.Get("/api/products/{id}", h.apiGetProduct)
		r.Put("/api/products/{id}", h.apiUpdateProduct)
		r.Put("/api/products/{id}/price", h.apiSetBasePrice)
		r.Get("/api/products/{id}/price-history", h.apiPriceHistory)

		// ── Stock ────────────────────────────────────────────────────────────
		r.Get("/api/stock", h.apiStockLevels)
		r.Get("/api/stock/movements", h.apiStockMovements)
		r.Post("/api/stock/adjustments", h.apiAdjustStock)
		r.Post("/api/stock/breakages", h.apiRecordBreakage)
		r.Post("/api/stock/compact", h.apiCompactStock)
		r.Get("/api/stock/{productID}", h.apiProductStock)

		// ── Containers ───────────────────────────────────────────────────────
		r.Get("/api/containers", h.apiListContainers)
		r.Post("/api/containers", h.apiCreateContainer)
		r.Get("/api/containers/{id}", h.apiGetContainer)
		r.Put("/api/containers/{id}/arrival", h.apiSetContainerArrival)
		r.Put("/api/containers/{id}/manifest/{productID}", h.apiSetManifestLine)
		r.Delete("/api/containers/{id}/manifest/{productID}", h.apiRemoveManifestLine)
		r.Put("/api/containers/{id}/received/{productID}", h.apiSetReceivedLine)
		r.Delete("/api/containers/{id}/received/{productID}", h.apiRemoveReceivedLine)
		r.Get("/api/containers/{id}/reconciliation", h.apiReconcileContainer)
		r.Post("/api/containers/{id}/validate", h.apiValidateContainer)

		// ── Invoices ─────────────────────────────────────────────────────────
		r.Get("/api/invoices", h.apiListInvoices)
		r.Post("/api/invoices", h.apiCreateInvoice)
		r.Get("/api/invoices/reminders", h.apiDueReminders)
		r.Get("/api/invoices/{id}", h.apiGetInvoice)
		r.Post("/api/invoices/{id}/lines", h.apiAddInvoiceLine)
		r.Put("/api/invoices/{id}/lines/{lineID}", h.apiUpdateInvoiceLine)
		r.Delete("/api/invoices/{id}/lines/{lineID}", h.apiRemoveInvoiceLine)
		r.Post("/api/invoices/{id}/validate", h.apiValidateInvoice)
		r.Post("/api/invoices/{id}/cancel", h.apiCancelInvoice)
		r.Post("/api/invoices/{id}/toggle-tax", h.apiToggleInvoiceTax)
		r.Post("/api/invoices/{id}/contest", h.apiContestInvoice)
		r.Post("/api/invoices/{id}/resolve", h.apiResolveContestation)
		r.Post("/api/invoices/{id}/reminder", h.apiPostponeReminder)
		r.Post("/api/invoices/{id}/acceptance-token", h.apiIssueAcceptanceToken)
		r.Post("/api/invoices/{id}/credit-note", h.apiCreditNoteFromInvoice)
		r.Get("/api/invoices/{id}/balance", h.apiInvoiceBalance)
		r.Get("/api/invoices/{id}/payments", h.apiListPayments)
		r.Post("/api/invoices/{id}/payments", h.apiRecordPayment)

		// ── Credit notes ─────────────────────────────────────────────────────
		r.Post("/api/credit-notes", h.apiIssueCreditNote)
		r.Post("/api/credit-notes/{id}/refunds", h.apiRefundCreditNote)

		// ── Purchases ────────────────────────────────────────────────────────
		r.Get("/api/purchases", h.apiListPurchases)
		r.Post("/api/purchases", h.apiCreatePurchase)
		r.Get("/api/purchases/{id}", h.apiGetPurchase)
		r.Put("/api/purchases/{id}/lines/{productID}", h.apiSetPurchaseLine)
		r.Delete("/api/purchases/{id}/lines/{productID}", h.apiRemovePurchaseLine)
		r.Post("/api/purchases/{id}/validate", h.apiValidatePurchase)
		r.Get("/api/purchases/{id}/payments", h.apiListPurchasePayments)
		r.Post("/api/purchases/{id}/payments", h.apiRecordPurchasePayment)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// listRequest reads the common listing query parameters.
func listRequest(w http.ResponseWriter, r *http.Request) (app.ListRequest, bool) {
	q := r.URL.Query()
	req := app.ListRequest{
		Search:          q.Get("q"),
		Status:          q.Get("status"),
		From:            q.Get("from"),
		To:              q.Get("to"),
		Category:        q.Get("category"),
		Type:            q.Get("type"),
		IncludeInactive: q.Get("include_inactive") == "true",
		LowOnly:         q.Get("low_only") == "true",
	}
	ints := map[string]*int{
		"page":       &req.Page,
		"page_size":  &req.PageSize,
		"client_id":  &req.ClientID,
		"product_id": &req.ProductID,
	}
	for name, dst := range ints {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
			return req, false
		}
		*dst = n
	}
	return req, true
}
