package web

import (
	"net/http"

	"github.com/fodouopn/gsa-manager/internal/app"
)

// apiListContainers handles GET /api/containers.
func (h *Handler) apiListContainers(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ListContainers(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// apiCreateContainer handles POST /api/containers.
func (h *Handler) apiCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req app.ContainerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateContainer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, c)
}

// apiGetContainer handles GET /api/containers/{id}.
func (h *Handler) apiGetContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.GetContainer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

// apiSetContainerArrival handles PUT /api/containers/{id}/arrival.
func (h *Handler) apiSetContainerArrival(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ArrivalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.SetContainerArrival(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

// idAndProduct parses {id} and {productID} for per-product line routes.
func idAndProduct(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return 0, 0, false
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return 0, 0, false
	}
	return id, productID, true
}

func (h *Handler) apiSetManifestLine(w http.ResponseWriter, r *http.Request) {
	id, productID, ok := idAndProduct(w, r)
	if !ok {
		return
	}
	var req app.ManifestLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.SetManifestLine(r.Context(), id, productID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) apiRemoveManifestLine(w http.ResponseWriter, r *http.Request) {
	id, productID, ok := idAndProduct(w, r)
	if !ok {
		return
	}
	c, err := h.svc.RemoveManifestLine(r.Context(), id, productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) apiSetReceivedLine(w http.ResponseWriter, r *http.Request) {
	id, productID, ok := idAndProduct(w, r)
	if !ok {
		return
	}
	var req app.ReceivedLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.SetReceivedLine(r.Context(), id, productID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) apiRemoveReceivedLine(w http.ResponseWriter, r *http.Request) {
	id, productID, ok := idAndProduct(w, r)
	if !ok {
		return
	}
	c, err := h.svc.RemoveReceivedLine(r.Context(), id, productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

// apiReconcileContainer handles GET /api/containers/{id}/reconciliation.
func (h *Handler) apiReconcileContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ReconcileContainer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiValidateContainer handles POST /api/containers/{id}/validate.
func (h *Handler) apiValidateContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.ValidateContainer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}
