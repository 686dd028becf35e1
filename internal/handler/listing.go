package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
)

// listingView is the wire shape of a listing. Prices are minor currency
// units; createdAt is microseconds since the Unix epoch.
type listingView struct {
	ListingID   string `json:"listingId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Condition   string `json:"condition"`
	ImageURL    string `json:"imageUrl"`
	Status      string `json:"status"`
	Seller      string `json:"seller"`
	CreatedAt   int64  `json:"createdAt"`
}

func toListingView(l listing.Listing) listingView {
	return listingView{
		ListingID:   l.ID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Condition:   string(l.Condition),
		ImageURL:    l.ImageURL,
		Status:      string(l.Status),
		Seller:      string(l.Seller),
		CreatedAt:   l.CreatedAt.UnixMicro(),
	}
}

func toListingViews(ls []listing.Listing) []listingView {
	out := make([]listingView, len(ls))
	for i, l := range ls {
		out[i] = toListingView(l)
	}
	return out
}

type createListingRequest struct {
	ListingID   string `json:"listingId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Condition   string `json:"condition"`
	ImageURL    string `json:"imageUrl"`
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.listings.Create(r.Context(), CallerFromContext(r.Context()), listing.CreateRequest{
		ListingID:   req.ListingID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Condition:   listing.Condition(req.Condition),
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.listingsCreated.Add(r.Context(), 1)
	writeJSON(w, http.StatusCreated, toListingView(*l))
}

func (h *Handler) markListingSold(w http.ResponseWriter, r *http.Request) {
	err := h.listings.MarkSold(r.Context(), CallerFromContext(r.Context()), chi.URLParam(r, "listingID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activeListings(w http.ResponseWriter, r *http.Request) {
	ls, err := h.listings.Active(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingViews(ls))
}

func (h *Handler) listingsSortedByCreatedAt(w http.ResponseWriter, r *http.Request) {
	ls, err := h.listings.SortedByCreatedAt(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingViews(ls))
}

func (h *Handler) listingsSortedByPrice(w http.ResponseWriter, r *http.Request) {
	ls, err := h.listings.SortedByPrice(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingViews(ls))
}

func (h *Handler) sellerListings(w http.ResponseWriter, r *http.Request) {
	seller := identity.ID(chi.URLParam(r, "seller"))
	ls, err := h.listings.BySeller(r.Context(), CallerFromContext(r.Context()), seller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingViews(ls))
}
