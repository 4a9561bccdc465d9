package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/preventia/studio-api/internal/domain/image"
	"github.com/preventia/studio-api/internal/domain/slot"
)

type fakeCommitter struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{} // when set, Commit blocks until closed
}

func (f *fakeCommitter) Commit(ctx context.Context, owner uuid.UUID, seccion string, itemID int, mimeType string, data []byte) (*image.Record, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &image.Record{
		ID:        uuid.New(),
		ClienteID: owner,
		Seccion:   seccion,
		ItemID:    itemID,
		Imagen:    "https://cdn.example.com/imagenes/cliente_x/" + seccion + "_1.png",
	}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeSink) Publish(owner uuid.UUID, event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSink) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func TestResolveDisplayImage(t *testing.T) {
	owner := uuid.New()
	png := []byte("candidate bytes")

	t.Run("persisted only", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		c.LoadPersisted(owner, []*image.Record{
			{ClienteID: owner, Seccion: "hero", ItemID: 1, Imagen: "https://cdn/hero.png"},
		})

		ref, ok := c.ResolveDisplayImage(owner, "hero", 1)
		if !ok || ref != "https://cdn/hero.png" {
			t.Errorf("got (%q, %v), want persisted reference", ref, ok)
		}
	})

	t.Run("overlay wins over persisted", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		c.LoadPersisted(owner, []*image.Record{
			{ClienteID: owner, Seccion: "hero", ItemID: 1, Imagen: "https://cdn/hero.png"},
		})
		localRef, err := c.SelectCandidate(owner, "hero", 1, "image/png", png)
		if err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		ref, ok := c.ResolveDisplayImage(owner, "hero", 1)
		if !ok || ref != localRef {
			t.Errorf("got %q, want the staged data URL", ref)
		}
		if !strings.HasPrefix(ref, "data:image/png;base64,") {
			t.Errorf("local reference %q is not a data URL", ref)
		}
	})

	t.Run("overlay does not leak to other keys", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		c.LoadPersisted(owner, []*image.Record{
			{ClienteID: owner, Seccion: "servicios", ItemID: 2, Imagen: "https://cdn/s2.png"},
		})
		if _, err := c.SelectCandidate(owner, "servicios", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		ref, ok := c.ResolveDisplayImage(owner, "servicios", 2)
		if !ok || ref != "https://cdn/s2.png" {
			t.Errorf("sibling slot got %q, want its persisted reference", ref)
		}
	})

	t.Run("nothing known", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		if _, ok := c.ResolveDisplayImage(owner, "about", 1); ok {
			t.Error("empty workspace resolved a reference")
		}
	})
}

func TestUnsavedFlag(t *testing.T) {
	owner := uuid.New()
	png := []byte("candidate bytes")

	c := NewCoordinator(&fakeCommitter{}, nil)
	if c.HasUnsavedChanges(owner) {
		t.Fatal("fresh workspace reports unsaved changes")
	}

	if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", png); err != nil {
		t.Fatalf("SelectCandidate() error = %v", err)
	}
	if !c.HasUnsavedChanges(owner) {
		t.Fatal("overlay registered but flag is false")
	}

	if _, err := c.Commit(context.Background(), owner, "hero", 1); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if c.HasUnsavedChanges(owner) {
		t.Fatal("flag still true after the last overlay was committed")
	}
}

func TestSelectCandidate(t *testing.T) {
	owner := uuid.New()

	t.Run("rejects oversized files locally", func(t *testing.T) {
		committer := &fakeCommitter{}
		c := NewCoordinator(committer, nil)

		big := make([]byte, 600*1000) // clientes logos cap at 500KB
		_, err := c.SelectCandidate(owner, "clientes", 1, "image/png", big)
		if !errors.Is(err, slot.ErrFileTooLarge) {
			t.Fatalf("error = %v, want ErrFileTooLarge", err)
		}
		if c.HasUnsavedChanges(owner) {
			t.Error("rejected candidate registered an overlay")
		}
		if committer.calls != 0 {
			t.Error("network reached during local validation")
		}
	})

	t.Run("rejects non-images", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		_, err := c.SelectCandidate(owner, "hero", 1, "text/plain", []byte("hello"))
		if !errors.Is(err, slot.ErrInvalidFileType) {
			t.Fatalf("error = %v, want ErrInvalidFileType", err)
		}
	})

	t.Run("unknown slot", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		_, err := c.SelectCandidate(owner, "footer", 1, "image/png", []byte("x"))
		if !errors.Is(err, slot.ErrSlotNotFound) {
			t.Fatalf("error = %v, want ErrSlotNotFound", err)
		}
	})

	t.Run("reselecting replaces the staged candidate", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", []byte("first")); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}
		second, err := c.SelectCandidate(owner, "hero", 1, "image/png", []byte("second"))
		if err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		ref, _ := c.ResolveDisplayImage(owner, "hero", 1)
		if ref != second {
			t.Error("overlay does not show the latest candidate")
		}
		if got := len(c.Overlays(owner)); got != 1 {
			t.Errorf("overlay entries = %d, want 1", got)
		}
	})
}

func TestCommit(t *testing.T) {
	owner := uuid.New()
	png := []byte("candidate bytes")

	t.Run("success clears overlay and updates persisted", func(t *testing.T) {
		sink := &fakeSink{}
		c := NewCoordinator(&fakeCommitter{}, sink)
		if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		rec, err := c.Commit(context.Background(), owner, "hero", 1)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		ref, ok := c.ResolveDisplayImage(owner, "hero", 1)
		if !ok || ref != rec.Imagen {
			t.Errorf("display = %q, want the committed reference %q", ref, rec.Imagen)
		}
		if got := c.SlotStateFor(owner, "hero", 1); got != StateIdle {
			t.Errorf("state = %q, want idle", got)
		}
		if types := sink.types(); len(types) != 2 || types[1] != "committed" {
			t.Errorf("events = %v, want [staged committed]", types)
		}
	})

	t.Run("nothing staged", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		if _, err := c.Commit(context.Background(), owner, "hero", 1); !errors.Is(err, ErrNothingStaged) {
			t.Fatalf("error = %v, want ErrNothingStaged", err)
		}
	})

	t.Run("failure keeps the staged candidate for retry", func(t *testing.T) {
		committer := &fakeCommitter{err: errors.New("bucket unreachable")}
		c := NewCoordinator(committer, nil)
		localRef, err := c.SelectCandidate(owner, "hero", 1, "image/png", png)
		if err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		if _, err := c.Commit(context.Background(), owner, "hero", 1); err == nil {
			t.Fatal("Commit() succeeded, want error")
		}

		if got := c.SlotStateFor(owner, "hero", 1); got != StateStaged {
			t.Errorf("state after failure = %q, want staged", got)
		}
		if ref, _ := c.ResolveDisplayImage(owner, "hero", 1); ref != localRef {
			t.Error("overlay dropped after a failed commit")
		}

		// Retry succeeds once the backend recovers.
		committer.err = nil
		if _, err := c.Commit(context.Background(), owner, "hero", 1); err != nil {
			t.Fatalf("retry Commit() error = %v", err)
		}
	})

	t.Run("second commit while one is in flight", func(t *testing.T) {
		committer := &fakeCommitter{release: make(chan struct{})}
		c := NewCoordinator(committer, nil)
		if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		done := make(chan error, 1)
		go func() {
			_, err := c.Commit(context.Background(), owner, "hero", 1)
			done <- err
		}()

		for c.SlotStateFor(owner, "hero", 1) != StateUploading {
			time.Sleep(time.Millisecond)
		}

		if _, err := c.Commit(context.Background(), owner, "hero", 1); !errors.Is(err, ErrCommitInProgress) {
			t.Fatalf("concurrent commit error = %v, want ErrCommitInProgress", err)
		}
		if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", png); !errors.Is(err, ErrCommitInProgress) {
			t.Fatalf("staging during upload error = %v, want ErrCommitInProgress", err)
		}

		close(committer.release)
		if err := <-done; err != nil {
			t.Fatalf("first commit error = %v", err)
		}
	})
}

func TestDiscardAll(t *testing.T) {
	owner := uuid.New()
	png := []byte("candidate bytes")

	t.Run("clears every overlay, persisted untouched", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		c.LoadPersisted(owner, []*image.Record{
			{ClienteID: owner, Seccion: "hero", ItemID: 1, Imagen: "https://cdn/hero.png"},
		})
		for _, itemID := range []int{1, 2, 3} {
			if _, err := c.SelectCandidate(owner, "servicios", itemID, "image/png", png); err != nil {
				t.Fatalf("SelectCandidate() error = %v", err)
			}
		}

		c.DiscardAll(owner)

		if c.HasUnsavedChanges(owner) {
			t.Error("overlays remain after discard")
		}
		if ref, ok := c.ResolveDisplayImage(owner, "hero", 1); !ok || ref != "https://cdn/hero.png" {
			t.Error("persisted reference lost by discard")
		}
	})

	t.Run("skips the slot with a commit in flight", func(t *testing.T) {
		committer := &fakeCommitter{release: make(chan struct{})}
		c := NewCoordinator(committer, nil)
		if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}
		if _, err := c.SelectCandidate(owner, "about", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		done := make(chan error, 1)
		go func() {
			_, err := c.Commit(context.Background(), owner, "hero", 1)
			done <- err
		}()
		for c.SlotStateFor(owner, "hero", 1) != StateUploading {
			time.Sleep(time.Millisecond)
		}

		c.DiscardAll(owner)

		if got := c.SlotStateFor(owner, "about", 1); got != StateIdle {
			t.Errorf("idle slot state = %q after discard", got)
		}
		if got := c.SlotStateFor(owner, "hero", 1); got != StateUploading {
			t.Errorf("uploading slot state = %q, discard must not cancel it", got)
		}

		close(committer.release)
		if err := <-done; err != nil {
			t.Fatalf("in-flight commit error = %v", err)
		}
	})
}

func TestCancelAndDeletion(t *testing.T) {
	owner := uuid.New()
	png := []byte("candidate bytes")

	t.Run("cancel drops one staged slot", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		if _, err := c.SelectCandidate(owner, "hero", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}
		if _, err := c.SelectCandidate(owner, "about", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		c.Cancel(owner, "hero", 1)

		if got := c.SlotStateFor(owner, "hero", 1); got != StateIdle {
			t.Errorf("cancelled slot state = %q, want idle", got)
		}
		if !c.HasUnsavedChanges(owner) {
			t.Error("the other overlay was dropped too")
		}
	})

	t.Run("external commit clears the overlay and updates persisted", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		if _, err := c.SelectCandidate(owner, "clientes", 1, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		c.OnRecordCommitted(owner, &image.Record{
			ClienteID: owner,
			Seccion:   "clientes",
			ItemID:    1,
			Imagen:    image.PlaceholderReference,
		})

		if c.HasUnsavedChanges(owner) {
			t.Error("unsaved flag still set after the record was committed elsewhere")
		}
		if got := c.SlotStateFor(owner, "clientes", 1); got != StateIdle {
			t.Errorf("state = %q, want idle", got)
		}
		if ref, ok := c.ResolveDisplayImage(owner, "clientes", 1); !ok || ref != image.PlaceholderReference {
			t.Errorf("display = %q, want the committed reference", ref)
		}
	})

	t.Run("record deletion clears the slot", func(t *testing.T) {
		c := NewCoordinator(&fakeCommitter{}, nil)
		c.LoadPersisted(owner, []*image.Record{
			{ClienteID: owner, Seccion: "clientes", ItemID: 2, Imagen: "https://cdn/c2.png"},
		})
		if _, err := c.SelectCandidate(owner, "clientes", 2, "image/png", png); err != nil {
			t.Fatalf("SelectCandidate() error = %v", err)
		}

		c.OnRecordDeleted(owner, "clientes", 2)

		if _, ok := c.ResolveDisplayImage(owner, "clientes", 2); ok {
			t.Error("deleted slot still resolves a reference")
		}
		if c.HasUnsavedChanges(owner) {
			t.Error("overlay for the deleted slot survived")
		}
	})
}

func TestWorkspaceIsolation(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	c := NewCoordinator(&fakeCommitter{}, nil)
	if _, err := c.SelectCandidate(alice, "hero", 1, "image/png", []byte("x")); err != nil {
		t.Fatalf("SelectCandidate() error = %v", err)
	}

	if c.HasUnsavedChanges(bob) {
		t.Error("one owner's overlay leaked into another workspace")
	}
}
