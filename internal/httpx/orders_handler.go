package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/DPOO-f-boada/go-fulfillment/internal/catalog"
	"github.com/DPOO-f-boada/go-fulfillment/internal/orders"
	"github.com/DPOO-f-boada/go-fulfillment/internal/redisx"
	"github.com/DPOO-f-boada/go-fulfillment/internal/retry"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Coordinator *orders.Coordinator
	Store       orders.Store
	Redis       *redis.Client // optional snapshot cache
	Log         *zap.Logger
}

type PlaceOrderReq struct {
	ProductName        string  `json:"product_name"`
	Units              int     `json:"units"`
	Lat                float64 `json:"lat"`
	Lon                float64 `json:"lon"`
	PreferredWarehouse string  `json:"preferred_warehouse,omitempty"`
	CustomerID         *int64  `json:"customer_id,omitempty"`
}

type PlaceOrderResp struct {
	Order     orders.Order `json:"order"`
	Confirmed bool         `json:"confirmed"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
}

// placeOrder distinguishes confirmed (201) from rejected (200, terminal but
// not an error), bad input (400/404) and upstream unavailability (503). The
// order snapshot rides along whenever one exists so callers can reconcile by
// id.
func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductName == "" {
		writeError(w, http.StatusBadRequest, "product_name is required")
		return
	}
	if req.Units <= 0 {
		writeError(w, http.StatusBadRequest, "units must be > 0")
		return
	}

	order, confirmed, err := h.Coordinator.PlaceOrder(r.Context(), orders.PlacementRequest{
		ProductName:        req.ProductName,
		Units:              req.Units,
		Lat:                req.Lat,
		Lon:                req.Lon,
		CustomerID:         req.CustomerID,
		PreferredWarehouse: req.PreferredWarehouse,
		TraceID:            r.Header.Get("X-Request-Id"),
	})

	switch {
	case err == nil:
		h.cacheSnapshot(r, order)
		code := http.StatusOK
		if confirmed {
			code = http.StatusCreated
		}
		writeJSON(w, code, PlaceOrderResp{Order: order, Confirmed: confirmed})
	case errors.Is(err, orders.ErrInvalidUnits):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("product %q not found", req.ProductName))
	case retry.IsTransient(err):
		h.logger().Error("placement failed on unavailable collaborator", zap.Error(err))
		h.cacheSnapshot(r, order)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "upstream unavailable",
			"order": orderOrNil(order),
		})
	default:
		h.logger().Error("placement failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": err.Error(),
			"order": orderOrNil(order),
		})
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderSnapshot, id)
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	order, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.cacheSnapshot(r, order)
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) cacheSnapshot(r *http.Request, order orders.Order) {
	if h.Redis == nil || order.ID == "" {
		return
	}
	b, err := json.Marshal(order)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderSnapshot, order.ID)
	_ = h.Redis.Set(r.Context(), key, b, redisx.TTLOrderSnapshot).Err()
}

func orderOrNil(order orders.Order) any {
	if order.ID == "" {
		return nil
	}
	return order
}

func (h *OrdersHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
