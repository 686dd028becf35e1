package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/order"
)

// orderView is the wire shape of an order request. offerPrice and
// message are null when absent.
type orderView struct {
	OrderID    string  `json:"orderId"`
	ListingID  string  `json:"listingId"`
	Buyer      string  `json:"buyer"`
	OfferPrice *int64  `json:"offerPrice"`
	Message    *string `json:"message"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"createdAt"`
}

func toOrderView(o order.Request) orderView {
	var msg *string
	if o.Message != "" {
		msg = &o.Message
	}
	return orderView{
		OrderID:    o.ID,
		ListingID:  o.ListingID,
		Buyer:      string(o.Buyer),
		OfferPrice: o.OfferPrice,
		Message:    msg,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.UnixMicro(),
	}
}

func toOrderViews(os []order.Request) []orderView {
	out := make([]orderView, len(os))
	for i, o := range os {
		out[i] = toOrderView(o)
	}
	return out
}

type createOrderRequest struct {
	OrderID    string `json:"orderId"`
	ListingID  string `json:"listingId"`
	OfferPrice *int64 `json:"offerPrice"`
	Message    string `json:"message"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), CallerFromContext(r.Context()), order.CreateRequest{
		OrderID:    req.OrderID,
		ListingID:  req.ListingID,
		OfferPrice: req.OfferPrice,
		Message:    req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.ordersCreated.Add(r.Context(), 1)
	writeJSON(w, http.StatusCreated, toOrderView(*o))
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.orders.UpdateStatus(r.Context(), CallerFromContext(r.Context()),
		chi.URLParam(r, "orderID"), order.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ordersSortedByCreatedAt(w http.ResponseWriter, r *http.Request) {
	os, err := h.orders.SortedByCreatedAt(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViews(os))
}

func (h *Handler) sellerOrders(w http.ResponseWriter, r *http.Request) {
	seller := identity.ID(chi.URLParam(r, "seller"))
	os, err := h.orders.BySeller(r.Context(), CallerFromContext(r.Context()), seller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViews(os))
}

func (h *Handler) buyerOrders(w http.ResponseWriter, r *http.Request) {
	buyer := identity.ID(chi.URLParam(r, "buyer"))
	os, err := h.orders.ByBuyer(r.Context(), CallerFromContext(r.Context()), buyer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViews(os))
}
