package web

import (
	"net/http"

	"github.com/fodouopn/gsa-manager/internal/app"
)

// apiListPurchases handles GET /api/purchases?client_id= (the supplier).
func (h *Handler) apiListPurchases(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ListPurchases(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// apiCreatePurchase handles POST /api/purchases.
func (h *Handler) apiCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req app.PurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, p)
}

// apiGetPurchase handles GET /api/purchases/{id}.
func (h *Handler) apiGetPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPurchase(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiSetPurchaseLine(w http.ResponseWriter, r *http.Request) {
	id, productID, ok := idAndProduct(w, r)
	if !ok {
		return
	}
	var req app.PurchaseLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.SetPurchaseLine(r.Context(), id, productID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiRemovePurchaseLine(w http.ResponseWriter, r *http.Request) {
	id, productID, ok := idAndProduct(w, r)
	if !ok {
		return
	}
	p, err := h.svc.RemovePurchaseLine(r.Context(), id, productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiValidatePurchase handles POST /api/purchases/{id}/validate.
func (h *Handler) apiValidatePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.ValidatePurchase(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiListPurchasePayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.svc.ListPurchasePayments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payments)
}

// apiRecordPurchasePayment handles POST /api/purchases/{id}/payments.
func (h *Handler) apiRecordPurchasePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.svc.RecordPurchasePayment(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, payment)
}
