package public

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/preventia/studio-api/internal/domain/image"
	"github.com/preventia/studio-api/internal/pkg/response"
)

// Handler serves the marketing page's read-only image feed. It reads one
// well-known owner's rows only: row-level ownership applies everywhere else,
// and this deliberate carve-out is scoped by configuration rather than by a
// public policy on the table itself.
type Handler struct {
	repo         image.Repository
	displayOwner uuid.UUID
	apiKey       string
}

// NewHandler creates the public handler
func NewHandler(repo image.Repository, displayOwner uuid.UUID, apiKey string) *Handler {
	return &Handler{repo: repo, displayOwner: displayOwner, apiKey: apiKey}
}

// Images handles GET /public/images
func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("apikey")
	if key == "" {
		key = r.URL.Query().Get("apikey")
	}
	if key != h.apiKey {
		response.Unauthorized(w, "Missing or invalid API key")
		return
	}

	images, err := h.repo.ListPublic(r.Context(), h.displayOwner)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, images)
}

// Routes mounts the public routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/images", h.Images)
	return r
}
