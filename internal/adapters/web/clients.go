package web

import (
	"net/http"

	"github.com/fodouopn/gsa-manager/internal/app"
)

// ── Clients ───────────────────────────────────────────────────────────────────

// apiListClients handles GET /api/clients.
func (h *Handler) apiListClients(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ListClients(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// apiCreateClient handles POST /api/clients.
func (h *Handler) apiCreateClient(w http.ResponseWriter, r *http.Request) {
	var req app.ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	client, err := h.svc.CreateClient(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, client)
}

// apiGetClient handles GET /api/clients/{id}.
func (h *Handler) apiGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	client, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, client)
}

// apiUpdateClient handles PUT /api/clients/{id}.
func (h *Handler) apiUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	client, err := h.svc.UpdateClient(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, client)
}

// apiClientBalance handles GET /api/clients/{id}/balance.
func (h *Handler) apiClientBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	balance, err := h.svc.ClientBalance(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, balance)
}

// apiClientStatement handles GET /api/clients/{id}/statement.
func (h *Handler) apiClientStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	statement, err := h.svc.ClientStatement(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, statement)
}

// apiListCreditNotes handles GET /api/clients/{id}/credit-notes.
func (h *Handler) apiListCreditNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	notes, err := h.svc.ListCreditNotes(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, notes)
}

// apiSupplierDebt handles GET /api/clients/{id}/supplier-debt.
// Suppliers are clients we also buy from.
func (h *Handler) apiSupplierDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	debt, err := h.svc.SupplierDebt(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, debt)
}

// apiReceivables handles GET /api/receivables.
func (h *Handler) apiReceivables(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Receivables(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

// ── Client prices ─────────────────────────────────────────────────────────────

func (h *Handler) apiListClientPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	prices, err := h.svc.ListClientPrices(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, prices)
}

func (h *Handler) apiSetClientPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req app.PriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	price, err := h.svc.SetClientPrice(r.Context(), id, productID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, price)
}

func (h *Handler) apiRemoveClientPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.svc.RemoveClientPrice(r.Context(), id, productID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
