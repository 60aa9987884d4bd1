package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DPOO-f-boada/go-fulfillment/internal/catalog"
	"github.com/DPOO-f-boada/go-fulfillment/internal/directory"
	"github.com/DPOO-f-boada/go-fulfillment/internal/ledger"
	"github.com/DPOO-f-boada/go-fulfillment/internal/retry"
	"github.com/go-chi/chi/v5"
)

// InventoryHandler exposes the warehouse directory and the stock ledger.
// Products are addressed by catalog name, like the rest of the API.
type InventoryHandler struct {
	Catalog   catalog.Catalog
	Ledger    ledger.Ledger
	Directory directory.Directory
}

type RestockReq struct {
	Units     int    `json:"units"` // negative units deduct
	Warehouse string `json:"warehouse"`
}

type RestockResp struct {
	ProductID int64  `json:"product_id"`
	Warehouse string `json:"warehouse"`
	Quantity  int    `json:"quantity"`
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Get("/warehouses", h.listWarehouses)
	r.Get("/inventory/{product}", h.availability)
	r.Post("/inventory/{product}/restock", h.restock)
}

func (h *InventoryHandler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Directory.ListWarehouses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ws == nil {
		ws = []directory.Warehouse{}
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *InventoryHandler) availability(w http.ResponseWriter, r *http.Request) {
	product, ok := h.resolveProduct(w, r)
	if !ok {
		return
	}
	avail, err := h.Ledger.GetAvailability(r.Context(), product.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if avail == nil {
		avail = []ledger.Availability{}
	}
	writeJSON(w, http.StatusOK, avail)
}

func (h *InventoryHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req RestockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Units == 0 {
		writeError(w, http.StatusBadRequest, "units must not be zero")
		return
	}
	if req.Warehouse == "" {
		writeError(w, http.StatusBadRequest, "warehouse is required")
		return
	}

	product, ok := h.resolveProduct(w, r)
	if !ok {
		return
	}

	qty, err := h.Ledger.AdjustStock(r.Context(), product.ID, req.Warehouse, req.Units)
	var ise *ledger.InsufficientStockError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, RestockResp{ProductID: product.ID, Warehouse: req.Warehouse, Quantity: qty})
	case errors.As(err, &ise):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":     "insufficient stock",
			"available": ise.Available,
			"requested": ise.Requested,
		})
	case errors.Is(err, ledger.ErrWarehouseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case retry.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *InventoryHandler) resolveProduct(w http.ResponseWriter, r *http.Request) (catalog.Product, bool) {
	name := chi.URLParam(r, "product")
	product, err := h.Catalog.GetProductByName(r.Context(), name)
	switch {
	case err == nil:
		return product, true
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case retry.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return catalog.Product{}, false
}
