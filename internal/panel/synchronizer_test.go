package panel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/remember-rp/concierge/internal/model"
)

type memRefs struct {
	refs map[string]model.PanelRef
}

func newMemRefs() *memRefs {
	return &memRefs{refs: map[string]model.PanelRef{}}
}

func (m *memRefs) Get(_ context.Context, key string) (model.PanelRef, bool, error) {
	ref, ok := m.refs[key]
	return ref, ok, nil
}

func (m *memRefs) Put(_ context.Context, ref model.PanelRef) error {
	m.refs[ref.Key] = ref
	return nil
}

func (m *memRefs) ClearRef(_ context.Context, key string) error {
	ref := m.refs[key]
	ref.MessageRef = ""
	m.refs[key] = ref
	return nil
}

type fakeMessenger struct {
	nextRef  int
	messages map[string]string
	history  map[string]bool
	creates  int
	edits    int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{messages: map[string]string{}, history: map[string]bool{}}
}

func (f *fakeMessenger) CreateMessage(_ context.Context, channelRef, content string) (string, error) {
	f.creates++
	f.nextRef++
	ref := fmt.Sprintf("msg-%d", f.nextRef)
	f.messages[ref] = content
	f.history[channelRef] = true
	return ref, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, _, messageRef, content string) error {
	if _, ok := f.messages[messageRef]; !ok {
		return ErrMessageMissing
	}
	f.edits++
	f.messages[messageRef] = content
	return nil
}

func (f *fakeMessenger) ChannelHasHistory(_ context.Context, channelRef string) (bool, error) {
	return f.history[channelRef], nil
}

func newTestSynchronizer(guarded ...string) (*Synchronizer, *memRefs, *fakeMessenger) {
	refs := newMemRefs()
	messenger := newFakeMessenger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSynchronizer(refs, messenger, logger, guarded...), refs, messenger
}

func TestUpsertCreatesOnceThenEdits(t *testing.T) {
	sync, refs, messenger := newTestSynchronizer()
	ctx := context.Background()

	if err := sync.Upsert(ctx, KeyPlanning, "chan-1", "v1"); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := sync.Upsert(ctx, KeyPlanning, "chan-1", "v2"); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if err := sync.Upsert(ctx, KeyPlanning, "chan-1", "v3"); err != nil {
		t.Fatalf("third upsert failed: %v", err)
	}

	if messenger.creates != 1 || messenger.edits != 2 {
		t.Fatalf("creates = %d, edits = %d, want 1 and 2", messenger.creates, messenger.edits)
	}
	ref := refs.refs[KeyPlanning]
	if messenger.messages[ref.MessageRef] != "v3" {
		t.Fatalf("live message content = %q, want v3", messenger.messages[ref.MessageRef])
	}
}

func TestUpsertHealsStaleReference(t *testing.T) {
	sync, refs, messenger := newTestSynchronizer()
	ctx := context.Background()

	if err := sync.Upsert(ctx, KeyPlanning, "chan-1", "v1"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	stale := refs.refs[KeyPlanning].MessageRef

	// The backing message disappears out of band.
	delete(messenger.messages, stale)

	if err := sync.Upsert(ctx, KeyPlanning, "chan-1", "v2"); err != nil {
		t.Fatalf("upsert after deletion failed: %v", err)
	}
	fresh := refs.refs[KeyPlanning]
	if fresh.MessageRef == stale || fresh.MessageRef == "" {
		t.Fatalf("stale reference not replaced: %q", fresh.MessageRef)
	}
	if messenger.messages[fresh.MessageRef] != "v2" {
		t.Fatalf("replacement content = %q, want v2", messenger.messages[fresh.MessageRef])
	}
	if messenger.creates != 2 {
		t.Fatalf("creates = %d, want 2", messenger.creates)
	}
}

func TestGuardedKeySkipsBusyChannel(t *testing.T) {
	sync, refs, messenger := newTestSynchronizer(KeyLinks)
	ctx := context.Background()

	messenger.history["chan-links"] = true

	if err := sync.Upsert(ctx, KeyLinks, "chan-links", "v1"); err != nil {
		t.Fatalf("guarded upsert failed: %v", err)
	}
	if messenger.creates != 0 {
		t.Fatal("guarded key wrote into a busy channel")
	}
	if _, ok := refs.refs[KeyLinks]; ok {
		t.Fatal("skipped write must store no reference")
	}
}

func TestGuardedKeyRecreatesAfterStaleRef(t *testing.T) {
	sync, refs, messenger := newTestSynchronizer(KeyLinks)
	ctx := context.Background()

	if err := sync.Upsert(ctx, KeyLinks, "chan-links", "v1"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	delete(messenger.messages, refs.refs[KeyLinks].MessageRef)

	// The channel now has history, but the guard only applies before the
	// first stored reference; a stale ref is replaced unconditionally.
	if err := sync.Upsert(ctx, KeyLinks, "chan-links", "v2"); err != nil {
		t.Fatalf("upsert after deletion failed: %v", err)
	}
	if messenger.creates != 2 {
		t.Fatalf("creates = %d, want 2", messenger.creates)
	}
	if refs.refs[KeyLinks].MessageRef == "" {
		t.Fatal("reference not restored")
	}
}

func TestUnguardedKeyIgnoresHistory(t *testing.T) {
	sync, _, messenger := newTestSynchronizer(KeyLinks)
	ctx := context.Background()

	messenger.history["chan-1"] = true
	if err := sync.Upsert(ctx, KeyPlanning, "chan-1", "v1"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if messenger.creates != 1 {
		t.Fatal("unguarded key must create regardless of history")
	}
}
