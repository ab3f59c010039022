package web

import (
	"net/http"

	"github.com/fodouopn/gsa-manager/internal/app"
)

// apiRecordPayment handles POST /api/invoices/{id}/payments.
func (h *Handler) apiRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.svc.RecordPayment(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, payment)
}

// apiListPayments handles GET /api/invoices/{id}/payments.
func (h *Handler) apiListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payments)
}

// apiInvoiceBalance handles GET /api/invoices/{id}/balance.
func (h *Handler) apiInvoiceBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	balance, err := h.svc.InvoiceBalance(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, balance)
}

// apiIssueCreditNote handles POST /api/credit-notes.
func (h *Handler) apiIssueCreditNote(w http.ResponseWriter, r *http.Request) {
	var req app.CreditNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.IssueCreditNote(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, note)
}

// apiCreditNoteFromInvoice handles POST /api/invoices/{id}/credit-note.
func (h *Handler) apiCreditNoteFromInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.CreditNoteFromInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.CreditNoteFromInvoice(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, note)
}

// apiRefundCreditNote handles POST /api/credit-notes/{id}/refunds.
func (h *Handler) apiRefundCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.RefundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.RefundCreditNote(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, note)
}
