package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loja/storefront/internal/middleware"
	"github.com/loja/storefront/internal/response"
)

// Handler holds HTTP handlers for order endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new order Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type placeRequest struct {
	Items []CartItem `json:"items"`
}

// Place godoc
//
//	@Summary		Place order
//	@Description	Turn the cart into an order. Quantities above the available stock are reduced and reported under "adjustments".
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		placeRequest	true	"Cart"
//	@Success		201		{object}	response.Envelope{data=Order}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		422		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/orders [post]
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	o, err := h.svc.Place(r.Context(), middleware.UserID(r.Context()), req.Items)
	switch {
	case errors.Is(err, ErrInvalidCart):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrEmptyCart):
		response.UnprocessableEntity(w, "none of the cart items are in stock")
	case err != nil:
		response.InternalError(w)
	default:
		response.Created(w, o)
	}
}

// List godoc
//
//	@Summary		List my orders
//	@Tags			orders
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Order}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/orders [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, orders)
}

// Detail godoc
//
//	@Summary		Get my order
//	@Tags			orders
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Order ID"
//	@Success		200	{object}	response.Envelope{data=Order}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/orders/{id} [get]
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "order not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, o)
}
