package image

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/preventia/studio-api/internal/domain/slot"
	"github.com/preventia/studio-api/internal/pkg/storage"
)

// Service handles slot image business logic: commits (upload bytes, then
// upsert the record) and the dynamic client-logo collection.
type Service struct {
	repo  Repository
	store storage.Storage
}

// NewService creates the image service
func NewService(repo Repository, store storage.Storage) *Service {
	return &Service{repo: repo, store: store}
}

// ObjectKey builds the deterministic storage name for a slot, so a re-upload
// overwrites instead of accumulating objects.
func ObjectKey(owner uuid.UUID, seccion string, itemID int, ext string) string {
	return fmt.Sprintf("cliente_%s/%s_%d%s", owner, seccion, itemID, ext)
}

// Commit uploads a validated candidate and upserts its record. There is no
// transaction spanning the two steps: if the upsert fails the uploaded object
// stays behind (logged, never reaped) and the caller keeps its staged state.
func (s *Service) Commit(ctx context.Context, owner uuid.UUID, seccion string, itemID int, mimeType string, data []byte) (*Record, error) {
	desc, ok := slot.Resolve(seccion, itemID)
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	if err := slot.ValidateFile(desc, mimeType, int64(len(data))); err != nil {
		return nil, err
	}

	key := ObjectKey(owner, seccion, itemID, extensionForMime(mimeType))
	if err := s.store.Put(ctx, key, bytes.NewReader(data), mimeType); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Slot image upload failed")
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	rec := &Record{
		ClienteID: owner,
		Seccion:   seccion,
		ItemID:    itemID,
		Imagen:    s.store.PublicURL(key),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		// The object is now orphaned in the bucket; surfaced for operators,
		// no automatic cleanup.
		log.Warn().Err(err).Str("key", key).Msg("Record upsert failed after upload, object orphaned")
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return rec, nil
}

// Get returns the record for one slot key, or nil when none is stored.
func (s *Service) Get(ctx context.Context, owner uuid.UUID, seccion string, itemID int) (*Record, error) {
	return s.repo.Get(ctx, owner, seccion, itemID)
}

// ListByOwner returns every persisted record for the owner.
func (s *Service) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Record, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// ListClients returns the client-logo family ordered by item_id ascending.
func (s *Service) ListClients(ctx context.Context, owner uuid.UUID) ([]*Record, error) {
	return s.repo.ListSection(ctx, owner, slot.SectionClients)
}

// AddClient creates the next client slot with a placeholder reference. The
// studio opens the editor for the new slot right away.
func (s *Service) AddClient(ctx context.Context, owner uuid.UUID) (*Record, error) {
	return s.repo.InsertNext(ctx, owner, slot.SectionClients, PlaceholderReference)
}

// RemoveClient deletes the record for (owner, clientes, itemID) and
// best-effort removes the binary. The uploaded extension is derived from the
// stored reference when possible; the jpg/png/webp guesses cover older rows.
// Deleting an object that does not exist is a no-op.
func (s *Service) RemoveClient(ctx context.Context, owner uuid.UUID, itemID int) error {
	rec, err := s.repo.Get(ctx, owner, slot.SectionClients, itemID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordNotFound
	}

	if err := s.repo.Delete(ctx, owner, slot.SectionClients, itemID); err != nil {
		return err
	}

	exts := []string{".jpg", ".png", ".webp"}
	if ext := extensionFromReference(rec.Imagen); ext != "" {
		exts = append([]string{ext}, exts...)
	}
	seen := map[string]bool{}
	for _, ext := range exts {
		if seen[ext] {
			continue
		}
		seen[ext] = true
		key := ObjectKey(owner, slot.SectionClients, itemID, ext)
		if err := s.store.Delete(ctx, key); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Best-effort object cleanup failed")
		}
	}
	return nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	default:
		return ""
	}
}

// extensionFromReference pulls the file extension out of a stored public URL.
// Placeholder and query-string references yield "".
func extensionFromReference(reference string) string {
	u, err := url.Parse(reference)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".svg":
		if ext == ".jpeg" {
			return ".jpg"
		}
		return ext
	}
	return ""
}
