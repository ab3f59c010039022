package web

import (
	"net/http"

	"github.com/fodouopn/gsa-manager/internal/app"
)

// ── Products ──────────────────────────────────────────────────────────────────

// apiListProducts handles GET /api/products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ListProducts(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// apiCreateProduct handles POST /api/products.
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, product)
}

// apiGetProduct handles GET /api/products/{id}.
func (h *Handler) apiGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiUpdateProduct handles PUT /api/products/{id}.
func (h *Handler) apiUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiSetBasePrice handles PUT /api/products/{id}/price.
func (h *Handler) apiSetBasePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.PriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.SetBasePrice(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiPriceHistory handles GET /api/products/{id}/price-history.
func (h *Handler) apiPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	history, err := h.svc.PriceHistory(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, history)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

// apiStockLevels handles GET /api/stock?category=&low_only=.
func (h *Handler) apiStockLevels(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	levels, err := h.svc.StockLevels(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, levels)
}

// apiProductStock handles GET /api/stock/{productID}?at=YYYY-MM-DD.
func (h *Handler) apiProductStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	balance, err := h.svc.ProductStock(r.Context(), productID, r.URL.Query().Get("at"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, balance)
}

// apiStockMovements handles GET /api/stock/movements.
func (h *Handler) apiStockMovements(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.StockMovements(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, page)
}

func (h *Handler) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req app.StockAdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	movement, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, movement)
}

func (h *Handler) apiRecordBreakage(w http.ResponseWriter, r *http.Request) {
	var req app.StockAdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	movement, err := h.svc.RecordBreakage(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, movement)
}

// apiCompactStock handles POST /api/stock/compact.
func (h *Handler) apiCompactStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CompactStock(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
