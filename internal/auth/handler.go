package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loja/storefront/internal/response"
	"github.com/loja/storefront/internal/user"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Username string `json:"username" example:"ana"`
	Password string `json:"password" example:"segredo1"`
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange a username and password for a bearer token valid for 30 days.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=LoginResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid username or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, result)
}
