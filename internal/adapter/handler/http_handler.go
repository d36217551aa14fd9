package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetshop/inventory/internal/core/domain"
	"github.com/sweetshop/inventory/internal/core/service"
)

const (
	actorHeader = "X-Actor-ID"
	roleHeader  = "X-Actor-Role"
	roleAdmin   = "admin"
)

// HTTPHandler adapts the inventory service to the JSON API. Actor
// identity and role arrive pre-authenticated in headers; this layer only
// reads them, it makes no auth decisions of its own.
type HTTPHandler struct {
	svc *service.InventoryService
}

func NewHTTPHandler(svc *service.InventoryService) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type purchaseRequest struct {
	Quantity int `json:"quantity"`
}

type restockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type adjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type batchRequest struct {
	Lines []domain.BatchLine `json:"lines"`
}

type itemDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	IsAvailable bool            `json:"is_available"`
}

type purchaseDTO struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"item_id"`
	BuyerID      string          `json:"buyer_id"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Status       string          `json:"status"`
	PurchaseDate time.Time       `json:"purchase_date"`
}

type logDTO struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	QuantityChange int       `json:"quantity_change"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

type batchResultDTO struct {
	ItemID   string       `json:"item_id"`
	Success  bool         `json:"success"`
	Purchase *purchaseDTO `json:"purchase,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func toPurchaseDTO(p *domain.Purchase) *purchaseDTO {
	return &purchaseDTO{
		ID:           p.ID,
		ItemID:       p.ItemID,
		BuyerID:      p.BuyerID,
		Quantity:     p.Quantity,
		TotalPrice:   p.TotalPrice,
		Status:       string(p.Status),
		PurchaseDate: p.PurchaseDate,
	}
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	purchase, err := h.svc.Purchase(r.Context(), r.PathValue("id"), actor, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "purchase completed", Data: toPurchaseDTO(purchase)})
}

func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	newQuantity, err := h.svc.Restock(r.Context(), r.PathValue("id"), actor, req.Quantity, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "restocked", Data: map[string]int{"new_quantity": newQuantity}})
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	newQuantity, err := h.svc.Adjust(r.Context(), r.PathValue("id"), actor, req.Delta, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "adjusted", Data: map[string]int{"new_quantity": newQuantity}})
}

func (h *HTTPHandler) PurchaseBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}
	if len(req.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "empty batch"})
		return
	}

	results := h.svc.PurchaseBatch(r.Context(), actor, req.Lines)

	dtos := make([]batchResultDTO, 0, len(results))
	for _, res := range results {
		dto := batchResultDTO{ItemID: res.ItemID, Success: res.Err == nil}
		if res.Purchase != nil {
			dto.Purchase = toPurchaseDTO(res.Purchase)
		}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		}
		dtos = append(dtos, dto)
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: dtos})
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: itemDTO{
		ID:          item.ID,
		Name:        item.Name,
		Price:       item.Price,
		Quantity:    item.Quantity,
		IsAvailable: item.IsAvailable,
	}})
}

func (h *HTTPHandler) InventoryLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.GetLog(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]logDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, logDTO{
			ID:             e.ID,
			ItemID:         e.ItemID,
			ActorID:        e.ActorID,
			Action:         string(e.Action),
			QuantityChange: e.QuantityChange,
			QuantityBefore: e.QuantityBefore,
			QuantityAfter:  e.QuantityAfter,
			Reason:         e.Reason,
			Timestamp:      e.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]any{"logs": dtos}})
}

func (h *HTTPHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := domain.PurchaseFilter{
		BuyerID: q.Get("buyer_id"),
		ItemID:  q.Get("item_id"),
		Page:    page,
		Limit:   limit,
	}
	// Non-admin callers only see their own history.
	if r.Header.Get(roleHeader) != roleAdmin {
		filter.BuyerID = actor
	}

	purchases, total, err := h.svc.PurchaseHistory(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]*purchaseDTO, 0, len(purchases))
	for i := range purchases {
		dtos = append(dtos, toPurchaseDTO(&purchases[i]))
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]any{"purchases": dtos, "total": total}})
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	dashboard, err := h.svc.ComputeDashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: dashboard})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "missing actor identity"})
		return "", false
	}
	return actor, true
}

func (h *HTTPHandler) admin(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return "", false
	}
	if r.Header.Get(roleHeader) != roleAdmin {
		writeJSON(w, http.StatusForbidden, response{Success: false, Message: "admin access required"})
		return "", false
	}
	return actor, true
}

func writeError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientStockError

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid quantity"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: "item not found"})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: err.Error(),
			Data:    map[string]int{"remaining": insufficient.Remaining},
		})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, response{Success: false, Message: "conflict, please retry"})
	default:
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
