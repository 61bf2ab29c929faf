package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/artelab/backoffice/internal/domain/order"
)

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customer_id"`
	Items           []orderItemResponse `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Discounts       decimal.Decimal     `json:"discounts"`
	Total           decimal.Decimal     `json:"total"`
	DeliveryAddress string              `json:"delivery_address"`
	DeliveryNotes   string              `json:"delivery_notes,omitempty"`
	Status          order.Status        `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
		}
	}
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Items:           items,
		Subtotal:        o.Subtotal,
		Discounts:       o.Discounts,
		Total:           o.Total,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryNotes:   o.DeliveryNotes,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderResponses(list []order.Order) []orderResponse {
	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = toOrderResponse(&list[i])
	}
	return out
}

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string             `json:"delivery_address" validate:"max=500"`
	DeliveryNotes   string             `json:"delivery_notes" validate:"max=1000"`
}

type updateOrderRequest struct {
	DeliveryAddress *string          `json:"delivery_address" validate:"omitempty,max=500"`
	DeliveryNotes   *string          `json:"delivery_notes" validate:"omitempty,max=1000"`
	Status          *string          `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
	Total           *decimal.Decimal `json:"total"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	items := make([]order.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, err := h.orders.Create(r.Context(), identity(r), order.CreateRequest{
		CustomerID:      req.CustomerID,
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryNotes:   req.DeliveryNotes,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusCreated, "order created", toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetFor(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "", toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	okList(r.Context(), w, toOrderResponses(list))
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListMine(r.Context(), identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	okList(r.Context(), w, toOrderResponses(list))
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListByCustomer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	okList(r.Context(), w, toOrderResponses(list))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	upd := order.UpdateRequest{
		DeliveryAddress: req.DeliveryAddress,
		DeliveryNotes:   req.DeliveryNotes,
		Total:           req.Total,
	}
	if req.Status != nil {
		s := order.Status(*req.Status)
		upd.Status = &s
	}

	o, err := h.orders.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "order updated", toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "order deleted", nil)
}
