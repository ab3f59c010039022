package web

import (
	"net/http"
	"strconv"

	"github.com/fodouopn/gsa-manager/internal/app"
)

// reportRequest reads from, to, at, period and limit from the query string.
func reportRequest(w http.ResponseWriter, r *http.Request) (app.ReportRequest, bool) {
	q := r.URL.Query()
	req := app.ReportRequest{
		From:   q.Get("from"),
		To:     q.Get("to"),
		At:     q.Get("at"),
		Period: q.Get("period"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "invalid limit", "BAD_REQUEST", http.StatusBadRequest)
			return req, false
		}
		req.Limit = n
	}
	return req, true
}

// apiStockValuation handles GET /api/reports/stock-value?at=YYYY-MM-DD.
func (h *Handler) apiStockValuation(w http.ResponseWriter, r *http.Request) {
	req, ok := reportRequest(w, r)
	if !ok {
		return
	}
	v, err := h.svc.StockValuation(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, v)
}

// apiSalesSummary handles GET /api/reports/sales?from=&to=&period=day|week|month.
func (h *Handler) apiSalesSummary(w http.ResponseWriter, r *http.Request) {
	req, ok := reportRequest(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.SalesSummary(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sum)
}

// apiTopProducts handles GET /api/reports/top-products?from=&to=&limit=.
func (h *Handler) apiTopProducts(w http.ResponseWriter, r *http.Request) {
	req, ok := reportRequest(w, r)
	if !ok {
		return
	}
	top, err := h.svc.TopProducts(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, top)
}

// apiDuesAt handles GET /api/reports/dues?at=YYYY-MM-DD.
func (h *Handler) apiDuesAt(w http.ResponseWriter, r *http.Request) {
	req, ok := reportRequest(w, r)
	if !ok {
		return
	}
	dues, err := h.svc.DuesAt(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, dues)
}
