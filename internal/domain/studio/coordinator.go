package studio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/preventia/studio-api/internal/domain/image"
	"github.com/preventia/studio-api/internal/domain/slot"
)

var (
	ErrNothingStaged    = errors.New("no candidate image is staged for this slot")
	ErrCommitInProgress = errors.New("a commit is already in flight for this slot")
)

// Key addresses one slot inside an owner's workspace.
type Key struct {
	Seccion string
	ItemID  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d", k.Seccion, k.ItemID)
}

// SlotState is the editor state of one slot.
type SlotState string

const (
	StateIdle      SlotState = "idle"
	StateStaged    SlotState = "staged"
	StateUploading SlotState = "uploading"
)

type stagedFile struct {
	data []byte
	mime string
}

// workspace is one owner's editing state: the loaded persisted references,
// the unsaved overlay, and the staged bytes behind each overlay entry.
type workspace struct {
	persisted map[Key]string
	overlays  map[Key]string
	staged    map[Key]*stagedFile
	uploading map[Key]bool
}

func newWorkspace() *workspace {
	return &workspace{
		persisted: make(map[Key]string),
		overlays:  make(map[Key]string),
		staged:    make(map[Key]*stagedFile),
		uploading: make(map[Key]bool),
	}
}

// Committer persists a staged candidate: uploads the bytes, upserts the record.
type Committer interface {
	Commit(ctx context.Context, owner uuid.UUID, seccion string, itemID int, mimeType string, data []byte) (*image.Record, error)
}

// EventSink receives overlay-change events for the live preview.
type EventSink interface {
	Publish(owner uuid.UUID, event Event)
}

// Event is one live-preview update.
type Event struct {
	Type      string `json:"type"` // staged, committed, cancelled, deleted, discarded
	Seccion   string `json:"seccion,omitempty"`
	ItemID    int    `json:"item_id,omitempty"`
	Reference string `json:"reference,omitempty"`
	Unsaved   bool   `json:"unsaved"`
}

// Coordinator is the single source of truth for what image each slot shows:
// the overlay entry when one exists, the persisted reference otherwise. The
// unsaved flag is true exactly when the overlay map is non-empty.
type Coordinator struct {
	mu         sync.Mutex
	workspaces map[uuid.UUID]*workspace
	committer  Committer
	events     EventSink // nil when no preview is connected
}

// NewCoordinator creates the preview/commit/discard coordinator.
func NewCoordinator(committer Committer, events EventSink) *Coordinator {
	return &Coordinator{
		workspaces: make(map[uuid.UUID]*workspace),
		committer:  committer,
		events:     events,
	}
}

func (c *Coordinator) workspace(owner uuid.UUID) *workspace {
	ws, ok := c.workspaces[owner]
	if !ok {
		ws = newWorkspace()
		c.workspaces[owner] = ws
	}
	return ws
}

func (c *Coordinator) publish(owner uuid.UUID, event Event) {
	if c.events != nil {
		c.events.Publish(owner, event)
	}
}

// LoadPersisted primes the workspace with the owner's stored records. Called
// when the studio loads; overlay entries are left untouched.
func (c *Coordinator) LoadPersisted(owner uuid.UUID, records []*image.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	for _, rec := range records {
		ws.persisted[Key{rec.Seccion, rec.ItemID}] = rec.Imagen
	}
}

// ResolveDisplayImage returns the reference currently shown for a slot: the
// overlay if one is registered for that exact key, else the persisted value.
// ok is false when neither exists and a placeholder should render.
func (c *Coordinator) ResolveDisplayImage(owner uuid.UUID, seccion string, itemID int) (reference string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	key := Key{seccion, itemID}
	if ref, ok := ws.overlays[key]; ok {
		return ref, true
	}
	if ref, ok := ws.persisted[key]; ok {
		return ref, true
	}
	return "", false
}

// HasUnsavedChanges reports whether any overlay entry exists for the owner.
func (c *Coordinator) HasUnsavedChanges(owner uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workspace(owner).overlays) > 0
}

// Overlays returns a copy of the owner's overlay map keyed "seccion-itemID".
func (c *Coordinator) Overlays(owner uuid.UUID) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	out := make(map[string]string, len(ws.overlays))
	for k, v := range ws.overlays {
		out[k.String()] = v
	}
	return out
}

// SlotStateFor reports the editor state of one slot.
func (c *Coordinator) SlotStateFor(owner uuid.UUID, seccion string, itemID int) SlotState {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	key := Key{seccion, itemID}
	switch {
	case ws.uploading[key]:
		return StateUploading
	case ws.staged[key] != nil:
		return StateStaged
	default:
		return StateIdle
	}
}

// SelectCandidate validates a candidate file against the slot registry and,
// on pass, stages it: the bytes are held for commit and an overlay entry with
// a local data URL is registered. On failure nothing changes.
func (c *Coordinator) SelectCandidate(owner uuid.UUID, seccion string, itemID int, mimeType string, data []byte) (string, error) {
	desc, found := slot.Resolve(seccion, itemID)
	if !found {
		return "", slot.ErrSlotNotFound
	}
	if err := slot.ValidateFile(desc, mimeType, int64(len(data))); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	key := Key{seccion, itemID}
	if ws.uploading[key] {
		return "", ErrCommitInProgress
	}

	localRef := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	ws.staged[key] = &stagedFile{data: data, mime: mimeType}
	ws.overlays[key] = localRef

	c.publish(owner, Event{Type: "staged", Seccion: seccion, ItemID: itemID, Reference: localRef, Unsaved: true})
	return localRef, nil
}

// Commit uploads the staged bytes for a slot and upserts the record. Only one
// commit may be in flight per slot. On success the overlay entry is cleared
// and the persisted reference updated; on failure the staged state is kept so
// the user can retry without reselecting the file.
func (c *Coordinator) Commit(ctx context.Context, owner uuid.UUID, seccion string, itemID int) (*image.Record, error) {
	key := Key{seccion, itemID}

	c.mu.Lock()
	ws := c.workspace(owner)
	if ws.uploading[key] {
		c.mu.Unlock()
		return nil, ErrCommitInProgress
	}
	staged := ws.staged[key]
	if staged == nil {
		c.mu.Unlock()
		return nil, ErrNothingStaged
	}
	ws.uploading[key] = true
	c.mu.Unlock()

	rec, err := c.committer.Commit(ctx, owner, seccion, itemID, staged.mime, staged.data)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(ws.uploading, key)
	if err != nil {
		// Back to Staged: overlay and bytes stay for a retry.
		return nil, err
	}

	ws.persisted[key] = rec.Imagen
	delete(ws.overlays, key)
	delete(ws.staged, key)

	c.publish(owner, Event{Type: "committed", Seccion: seccion, ItemID: itemID, Reference: rec.Imagen, Unsaved: len(ws.overlays) > 0})
	return rec, nil
}

// Cancel discards the staged candidate for a slot without network activity.
func (c *Coordinator) Cancel(owner uuid.UUID, seccion string, itemID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	key := Key{seccion, itemID}
	if ws.uploading[key] {
		return
	}
	delete(ws.overlays, key)
	delete(ws.staged, key)

	c.publish(owner, Event{Type: "cancelled", Seccion: seccion, ItemID: itemID, Unsaved: len(ws.overlays) > 0})
}

// OnRecordCommitted merges an externally committed record into persisted state
// and clears any overlay entry for its key.
func (c *Coordinator) OnRecordCommitted(owner uuid.UUID, rec *image.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	key := Key{rec.Seccion, rec.ItemID}
	ws.persisted[key] = rec.Imagen
	delete(ws.overlays, key)
	delete(ws.staged, key)
}

// OnRecordDeleted removes the persisted and overlay entries for a key.
func (c *Coordinator) OnRecordDeleted(owner uuid.UUID, seccion string, itemID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	key := Key{seccion, itemID}
	delete(ws.persisted, key)
	delete(ws.overlays, key)
	delete(ws.staged, key)

	c.publish(owner, Event{Type: "deleted", Seccion: seccion, ItemID: itemID, Unsaved: len(ws.overlays) > 0})
}

// DiscardAll clears every overlay entry for the owner without contacting the
// backend. Persisted state is untouched; this is a local-edit rollback only.
func (c *Coordinator) DiscardAll(owner uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspace(owner)
	// An in-flight commit keeps its staged entry; everything else goes.
	for key := range ws.overlays {
		if ws.uploading[key] {
			continue
		}
		delete(ws.overlays, key)
		delete(ws.staged, key)
	}

	c.publish(owner, Event{Type: "discarded", Unsaved: len(ws.overlays) > 0})
}
