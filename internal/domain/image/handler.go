package image

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/preventia/studio-api/internal/middleware"
	"github.com/preventia/studio-api/internal/pkg/response"
)

// RecordNotifier is told when a persisted record changes outside the staging
// flow, so overlays and preview state stay in sync with the store. Implemented
// by the studio coordinator.
type RecordNotifier interface {
	OnRecordCommitted(owner uuid.UUID, rec *Record)
	OnRecordDeleted(owner uuid.UUID, seccion string, itemID int)
}

// Handler handles persisted-record and client-collection HTTP requests
type Handler struct {
	service  *Service
	notifier RecordNotifier
}

// NewHandler creates the image handler. notifier may be nil in tests.
func NewHandler(service *Service, notifier RecordNotifier) *Handler {
	return &Handler{service: service, notifier: notifier}
}

// ListClients handles GET /studio/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	records, err := h.service.ListClients(r.Context(), owner)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, RecordResponsesFromEntities(records))
}

// AddClient handles POST /studio/clients
func (h *Handler) AddClient(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	rec, err := h.service.AddClient(r.Context(), owner)
	if err != nil {
		response.InternalError(w)
		return
	}

	if h.notifier != nil {
		h.notifier.OnRecordCommitted(owner, rec)
	}
	response.Created(w, RecordResponseFromEntity(rec))
}

// RemoveClient handles DELETE /studio/clients/{itemID}
func (h *Handler) RemoveClient(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil || itemID < 1 {
		response.BadRequest(w, "Invalid item id")
		return
	}

	owner := middleware.GetUserID(r.Context())
	if err := h.service.RemoveClient(r.Context(), owner, itemID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			response.NotFound(w, "Client logo not found")
			return
		}
		response.InternalError(w)
		return
	}

	if h.notifier != nil {
		h.notifier.OnRecordDeleted(owner, "clientes", itemID)
	}
	response.NoContent(w)
}

// Routes mounts the client-collection routes (already behind auth), meant to
// sit under /studio/clients.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListClients)
	r.Post("/", h.AddClient)
	r.Delete("/{itemID}", h.RemoveClient)
	return r
}
