package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/preventia/studio-api/internal/middleware"
	"github.com/preventia/studio-api/internal/pkg/response"
	"github.com/preventia/studio-api/internal/pkg/validator"
)

// Handler handles auth HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates the auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, "Invalid email or password")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, &LoginResponse{Token: token, User: userResponseFromEntity(user)})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.Unauthorized(w, "Missing session")
		return
	}
	if err := h.service.Logout(r.Context(), claims); err != nil {
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.Unauthorized(w, "Account no longer exists")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, userResponseFromEntity(user))
}

// CreateAccount handles POST /accounts. The response shapes here are the
// provisioning screen's wire contract and predate the standard envelope:
// 200 {success,message,user}, 400/401 {error}, 500 {error}.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		writeProvisionError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		if msg, ok := errs["password"]; ok {
			writeProvisionError(w, http.StatusBadRequest, "Password: "+msg)
			return
		}
		if msg, ok := errs["email"]; ok {
			writeProvisionError(w, http.StatusBadRequest, "Email: "+msg)
			return
		}
		writeProvisionError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.service.CreateAccount(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeProvisionError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Account provisioning failed")
		writeProvisionError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Account created successfully",
		"user": map[string]string{
			"id":    user.ID.String(),
			"email": user.Email,
		},
	})
}

func writeProvisionError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Routes mounts the auth routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
	return r
}
