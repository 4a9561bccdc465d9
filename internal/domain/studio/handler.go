package studio

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/preventia/studio-api/internal/domain/image"
	"github.com/preventia/studio-api/internal/domain/slot"
	"github.com/preventia/studio-api/internal/middleware"
	"github.com/preventia/studio-api/internal/pkg/response"
)

// Candidate files are buffered in memory; nothing editable exceeds 2MB, so a
// hard cap well above that catches runaway uploads early.
const maxUploadBytes = 8 << 20

// Handler handles studio HTTP requests
type Handler struct {
	coordinator *Coordinator
	images      *image.Service
	hub         *Hub
	upgrader    websocket.Upgrader
}

// NewHandler creates the studio handler
func NewHandler(coordinator *Coordinator, images *image.Service, hub *Hub, allowedOrigins []string) *Handler {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}
	return &Handler{
		coordinator: coordinator,
		images:      images,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originSet[origin]
			},
		},
	}
}

// Slots handles GET /studio/slots
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	response.OK(w, slot.Sections())
}

// State handles GET /studio/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	response.OK(w, map[string]interface{}{
		"unsaved_changes": h.coordinator.HasUnsavedChanges(owner),
		"overlays":        h.coordinator.Overlays(owner),
	})
}

// Images handles GET /studio/images: the owner's persisted records, which
// also primes the coordinator's view of persisted state.
func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	records, err := h.images.ListByOwner(r.Context(), owner)
	if err != nil {
		response.InternalError(w)
		return
	}
	h.coordinator.LoadPersisted(owner, records)
	response.OK(w, image.RecordResponsesFromEntities(records))
}

// Stage handles POST /studio/slots/{section}/{itemID}/stage
func (h *Handler) Stage(w http.ResponseWriter, r *http.Request) {
	seccion, itemID, ok := slotParams(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "Could not read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	owner := middleware.GetUserID(r.Context())
	localRef, err := h.coordinator.SelectCandidate(owner, seccion, itemID, mimeType, data)
	if err != nil {
		writeSlotError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"seccion":   seccion,
		"item_id":   itemID,
		"reference": localRef,
		"state":     StateStaged,
	})
}

// Commit handles POST /studio/slots/{section}/{itemID}/commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	seccion, itemID, ok := slotParams(w, r)
	if !ok {
		return
	}

	owner := middleware.GetUserID(r.Context())
	rec, err := h.coordinator.Commit(r.Context(), owner, seccion, itemID)
	if err != nil {
		writeSlotError(w, err)
		return
	}

	response.OK(w, image.RecordResponseFromEntity(rec))
}

// CancelStage handles DELETE /studio/slots/{section}/{itemID}/stage
func (h *Handler) CancelStage(w http.ResponseWriter, r *http.Request) {
	seccion, itemID, ok := slotParams(w, r)
	if !ok {
		return
	}

	owner := middleware.GetUserID(r.Context())
	h.coordinator.Cancel(owner, seccion, itemID)
	response.NoContent(w)
}

// Discard handles POST /studio/discard
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	h.coordinator.DiscardAll(owner)
	response.OK(w, map[string]interface{}{"unsaved_changes": h.coordinator.HasUnsavedChanges(owner)})
}

// Preview handles GET /studio/preview/{section}/{itemID}: the image the slot
// currently shows, overlay winning over persisted.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	seccion, itemID, ok := slotParams(w, r)
	if !ok {
		return
	}

	owner := middleware.GetUserID(r.Context())
	ref, found := h.coordinator.ResolveDisplayImage(owner, seccion, itemID)
	if !found {
		// The workspace may not be primed yet (fresh process); fall back to
		// the store before reporting a placeholder.
		rec, err := h.images.Get(r.Context(), owner, seccion, itemID)
		if err != nil {
			response.InternalError(w)
			return
		}
		if rec != nil {
			h.coordinator.LoadPersisted(owner, []*image.Record{rec})
			ref, found = rec.Imagen, true
		}
	}

	response.OK(w, map[string]interface{}{
		"seccion":   seccion,
		"item_id":   itemID,
		"reference": ref,
		"found":     found,
	})
}

// WebSocket handles GET /studio/ws: the live-preview event stream.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	if owner == uuid.Nil {
		response.Unauthorized(w, "Missing session")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Preview websocket upgrade failed")
		return
	}
	h.hub.Serve(owner, ws)
}

// Routes mounts the studio routes (already behind auth)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/slots", h.Slots)
	r.Get("/state", h.State)
	r.Get("/images", h.Images)
	r.Post("/discard", h.Discard)
	r.Get("/preview/{section}/{itemID}", h.Preview)
	r.Post("/slots/{section}/{itemID}/stage", h.Stage)
	r.Delete("/slots/{section}/{itemID}/stage", h.CancelStage)
	r.Post("/slots/{section}/{itemID}/commit", h.Commit)
	return r
}

func slotParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	seccion := chi.URLParam(r, "section")
	itemID, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil || itemID < 1 {
		response.BadRequest(w, "Invalid item id")
		return "", 0, false
	}
	return seccion, itemID, true
}

func writeSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrSlotNotFound):
		response.NotFound(w, "No such slot")
	case errors.Is(err, slot.ErrInvalidFileType):
		response.ValidationError(w, map[string]string{"file": "Please select a valid image file"})
	case errors.Is(err, slot.ErrFileTooLarge):
		response.ValidationError(w, map[string]string{"file": "File exceeds the maximum size for this slot"})
	case errors.Is(err, ErrNothingStaged):
		response.BadRequest(w, "No candidate image staged for this slot")
	case errors.Is(err, ErrCommitInProgress):
		response.Conflict(w, "A save is already in progress for this slot")
	case errors.Is(err, image.ErrUploadFailed):
		response.Error(w, http.StatusBadGateway, "UPLOAD_FAILED", "Could not upload the image, please try again")
	case errors.Is(err, image.ErrPersistFailed):
		response.Error(w, http.StatusBadGateway, "PERSIST_FAILED", "Could not save the image record, please try again")
	default:
		response.InternalError(w)
	}
}
