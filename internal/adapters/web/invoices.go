package web

import (
	"net/http"
	"time"

	"github.com/fodouopn/gsa-manager/internal/app"
	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/go-chi/chi/v5"
)

// ── Invoices ──────────────────────────────────────────────────────────────────

// apiListInvoices handles GET /api/invoices.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ListInvoices(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// apiCreateInvoice handles POST /api/invoices.
func (h *Handler) apiCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.InvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, inv)
}

// apiGetInvoice handles GET /api/invoices/{id}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiDueReminders handles GET /api/invoices/reminders?as_of=YYYY-MM-DD.
func (h *Handler) apiDueReminders(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, r, "as_of must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		asOf = t
	}
	invoices, err := h.svc.DueReminders(r.Context(), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, invoices)
}

// apiAddInvoiceLine handles POST /api/invoices/{id}/lines.
func (h *Handler) apiAddInvoiceLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.InvoiceLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.AddInvoiceLine(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiUpdateInvoiceLine handles PUT /api/invoices/{id}/lines/{lineID}.
func (h *Handler) apiUpdateInvoiceLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req app.LineQtyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.UpdateInvoiceLine(r.Context(), id, lineID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiRemoveInvoiceLine handles DELETE /api/invoices/{id}/lines/{lineID}.
func (h *Handler) apiRemoveInvoiceLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	inv, err := h.svc.RemoveInvoiceLine(r.Context(), id, lineID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// invoiceAction runs a body-less state transition on /api/invoices/{id}/<action>.
func (h *Handler) invoiceAction(w http.ResponseWriter, r *http.Request, fn func(id int) (*core.Invoice, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := fn(id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) apiValidateInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, func(id int) (*core.Invoice, error) {
		return h.svc.ValidateInvoice(r.Context(), id)
	})
}

func (h *Handler) apiCancelInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, func(id int) (*core.Invoice, error) {
		return h.svc.CancelInvoice(r.Context(), id)
	})
}

func (h *Handler) apiToggleInvoiceTax(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, func(id int) (*core.Invoice, error) {
		return h.svc.ToggleInvoiceTax(r.Context(), id)
	})
}

// apiContestInvoice handles POST /api/invoices/{id}/contest.
func (h *Handler) apiContestInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.ContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.invoiceAction(w, r, func(id int) (*core.Invoice, error) {
		return h.svc.ContestInvoice(r.Context(), id, req)
	})
}

// apiResolveContestation handles POST /api/invoices/{id}/resolve.
func (h *Handler) apiResolveContestation(w http.ResponseWriter, r *http.Request) {
	var req app.ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.invoiceAction(w, r, func(id int) (*core.Invoice, error) {
		return h.svc.ResolveContestation(r.Context(), id, req)
	})
}

// apiPostponeReminder handles POST /api/invoices/{id}/reminder.
func (h *Handler) apiPostponeReminder(w http.ResponseWriter, r *http.Request) {
	var req app.ReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.invoiceAction(w, r, func(id int) (*core.Invoice, error) {
		return h.svc.PostponeReminder(r.Context(), id, req)
	})
}

// ── Acceptance ────────────────────────────────────────────────────────────────

// apiIssueAcceptanceToken handles POST /api/invoices/{id}/acceptance-token.
// The raw token is only ever returned here.
func (h *Handler) apiIssueAcceptanceToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	token, err := h.svc.IssueAcceptanceToken(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, token)
}

// apiAcceptanceSummary handles GET /api/acceptance/{token}.
func (h *Handler) apiAcceptanceSummary(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.AcceptanceSummary(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiAcceptInvoice handles POST /api/acceptance/{token}.
func (h *Handler) apiAcceptInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.AcceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acc, err := h.svc.AcceptInvoice(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, acc)
}

// apiContestViaToken handles POST /api/acceptance/{token}/contest, the client's
// dispute from the acceptance page.
func (h *Handler) apiContestViaToken(w http.ResponseWriter, r *http.Request) {
	var req app.ContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.ContestViaToken(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}
