package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"stocktrack/internal/core/domain"
	"stocktrack/internal/core/service"
	"stocktrack/internal/diagnosis"
	"stocktrack/internal/metrics"
)

// HTTPHandler is the external-facing boundary: request decoding, outcome
// mapping, nothing else. Business rejections become their status codes and
// are never logged as errors; infrastructure failures become 500s and are
// handed to the diagnosis service off the request path.
type HTTPHandler struct {
	inventory *service.InventoryService
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	diag      *diagnosis.Service
}

type CreateItemRequest struct {
	StoreID  string `json:"store_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ReserveResponse struct {
	Success   bool   `json:"success"`
	Remaining int    `json:"remaining,omitempty"`
	Message   string `json:"message"`
}

type ItemResponse struct {
	StoreID  string `json:"store_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Revision string `json:"revision"`
}

func NewHTTPHandler(inventory *service.InventoryService, logger zerolog.Logger, m *metrics.Metrics, diag *diagnosis.Service) *HTTPHandler {
	return &HTTPHandler{inventory: inventory, logger: logger, metrics: m, diag: diag}
}

// Register wires all routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/inventory/reserve", h.instrument("/api/inventory/reserve", h.Reserve))
	mux.HandleFunc("POST /api/inventory/items", h.instrument("/api/inventory/items", h.CreateItem))
	mux.HandleFunc("GET /api/inventory/stores/{storeId}/items", h.instrument("/api/inventory/stores/items", h.ListItems))
	mux.HandleFunc("GET /api/inventory/stores/{storeId}/items/{sku}", h.instrument("/api/inventory/stores/items/sku", h.GetItem))
	mux.HandleFunc("PATCH /api/inventory/stores/{storeId}/items/{sku}", h.instrument("/api/inventory/stores/items/sku", h.UpdateQuantity))
	mux.HandleFunc("DELETE /api/inventory/stores/{storeId}/items/{sku}", h.instrument("/api/inventory/stores/items/sku", h.DeleteItem))
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req domain.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordReservation("invalid")
		writeJSON(w, http.StatusBadRequest, ReserveResponse{Message: "invalid request body"})
		return
	}
	if req.StoreID == "" || req.SKU == "" || req.Quantity <= 0 {
		h.metrics.RecordReservation("invalid")
		writeJSON(w, http.StatusBadRequest, ReserveResponse{Message: "store_id, sku and a positive quantity are required"})
		return
	}

	remaining, err := h.inventory.TryReserve(r.Context(), req.StoreID, req.SKU, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.metrics.RecordReservation("not_found")
			writeJSON(w, http.StatusNotFound, ReserveResponse{Message: "item not found"})
		case errors.Is(err, service.ErrInsufficientStock):
			h.metrics.RecordReservation("insufficient_stock")
			writeJSON(w, http.StatusGone, ReserveResponse{Message: "insufficient stock"})
		case errors.Is(err, service.ErrConflict):
			h.metrics.RecordReservation("conflict")
			writeJSON(w, http.StatusConflict, ReserveResponse{Message: "lost a concurrent update race, retry"})
		case errors.Is(err, service.ErrInvalidInput):
			h.metrics.RecordReservation("invalid")
			writeJSON(w, http.StatusBadRequest, ReserveResponse{Message: err.Error()})
		default:
			h.metrics.RecordReservation("error")
			h.serverError(w, "reserve", err)
		}
		return
	}

	h.metrics.RecordReservation("reserved")
	writeJSON(w, http.StatusOK, ReserveResponse{
		Success:   true,
		Remaining: remaining,
		Message:   "stock reserved",
	})
}

func (h *HTTPHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	item, err := h.inventory.CreateItem(r.Context(), req.StoreID, req.SKU, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, map[string]string{"message": "item already exists"})
		case errors.Is(err, service.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		default:
			h.serverError(w, "create item", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.ListByStore(r.Context(), r.PathValue("storeId"))
	if err != nil {
		h.serverError(w, "list items", err)
		return
	}

	response := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.GetItem(r.Context(), r.PathValue("storeId"), r.PathValue("sku"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not found"})
			return
		}
		h.serverError(w, "get item", err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	item, err := h.inventory.UpdateQuantity(r.Context(), r.PathValue("storeId"), r.PathValue("sku"), req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not found"})
		case errors.Is(err, service.ErrConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"message": "lost a concurrent update race, retry"})
		case errors.Is(err, service.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		default:
			h.serverError(w, "update quantity", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	err := h.inventory.DeleteItem(r.Context(), r.PathValue("storeId"), r.PathValue("sku"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not found"})
			return
		}
		h.serverError(w, "delete item", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.diag.Report(op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
}

// instrument records request count and duration for one route pattern.
func (h *HTTPHandler) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		h.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(recorder.status), time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func toItemResponse(item domain.Item) ItemResponse {
	return ItemResponse{
		StoreID:  item.StoreID,
		SKU:      item.SKU,
		Quantity: item.Quantity,
		Revision: item.Revision,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
