package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loja/storefront/internal/middleware"
	"github.com/loja/storefront/internal/response"
)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type accountRequest struct {
	User    UserForm    `json:"user"`
	Profile ProfileForm `json:"profile"`
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create a customer account and its profile. Field rule failures are listed under "fields".
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountRequest	true	"Account and profile"
//	@Success		201		{object}	response.Envelope{data=Account}
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/users [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	acc, err := h.svc.Register(r.Context(), req.User, req.Profile)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.Created(w, acc)
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the account and profile of the currently authenticated user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=Account}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	acc, err := h.svc.GetAccount(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, acc)
}

// UpdateMe godoc
//
//	@Summary		Update current user
//	@Description	Replace the account and profile of the authenticated user. An empty password keeps the current one.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		accountRequest	true	"Account and profile"
//	@Success		200		{object}	response.Envelope{data=Account}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/users/me [put]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	acc, err := h.svc.Update(r.Context(), userID, req.User, req.Profile)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, acc)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var invalid ValidationErrors
	switch {
	case errors.As(err, &invalid):
		response.Invalid(w, "invalid form", invalid)
	case h.svc.IsNotFound(err):
		response.NotFound(w, "user not found")
	default:
		response.InternalError(w)
	}
}
