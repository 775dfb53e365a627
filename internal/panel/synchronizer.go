package panel

import (
	"context"
	"errors"
	"log/slog"

	"github.com/remember-rp/concierge/internal/model"
)

// Panel keys. Each names one continuously-updated status display backed by at
// most one live message.
const (
	KeyPlanning      = "planning"
	KeyAbsences      = "absences"
	KeyLinks         = "links"
	KeyRulesGeneral  = "rules_general"
	KeyRulesPlatform = "rules_platform"
)

// GuardedKeys are panels that must not claim a channel someone already wrote
// to: their first-ever creation is skipped when the channel has history and
// no reference is stored.
var GuardedKeys = []string{KeyLinks, KeyRulesGeneral, KeyRulesPlatform}

// ErrMessageMissing is reported by a Messenger when the referenced backing
// message no longer exists.
var ErrMessageMissing = errors.New("panel message missing")

// Messenger is the platform side of panel writes. The synchronizer decides
// what to write and where; transport belongs to the implementation.
type Messenger interface {
	CreateMessage(ctx context.Context, channelRef, content string) (messageRef string, err error)
	EditMessage(ctx context.Context, channelRef, messageRef, content string) error
	ChannelHasHistory(ctx context.Context, channelRef string) (bool, error)
}

// RefStore persists one message reference per panel key (single-row upsert,
// last writer wins).
type RefStore interface {
	Get(ctx context.Context, key string) (model.PanelRef, bool, error)
	Put(ctx context.Context, ref model.PanelRef) error
	ClearRef(ctx context.Context, key string) error
}

type Synchronizer struct {
	refs      RefStore
	messenger Messenger
	guarded   map[string]bool
	logger    *slog.Logger
}

func NewSynchronizer(refs RefStore, messenger Messenger, logger *slog.Logger, guardedKeys ...string) *Synchronizer {
	guarded := make(map[string]bool, len(guardedKeys))
	for _, k := range guardedKeys {
		guarded[k] = true
	}
	return &Synchronizer{refs: refs, messenger: messenger, guarded: guarded, logger: logger}
}

// Upsert makes the stored message for key show content: edit in place when a
// live reference exists, otherwise create and record a new message. A stale
// reference self-heals here, never on read. At any observation point at most
// one authoritative message per key is reachable through the ref store.
func (s *Synchronizer) Upsert(ctx context.Context, key, channelRef, content string) error {
	ref, hadRef, err := s.refs.Get(ctx, key)
	if err != nil {
		return err
	}

	if hadRef && ref.MessageRef != "" {
		err := s.messenger.EditMessage(ctx, ref.ChannelRef, ref.MessageRef, content)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrMessageMissing) {
			return err
		}
		// Backing message was deleted out from under us.
		if err := s.refs.ClearRef(ctx, key); err != nil {
			return err
		}
	}

	if s.guarded[key] && !hadRef {
		busy, err := s.messenger.ChannelHasHistory(ctx, channelRef)
		if err != nil {
			return err
		}
		if busy {
			// Someone maintains this channel by hand; leave it alone.
			s.logger.Info("panel channel not empty, skipping first write", "key", key)
			return nil
		}
	}

	messageRef, err := s.messenger.CreateMessage(ctx, channelRef, content)
	if err != nil {
		return err
	}
	return s.refs.Put(ctx, model.PanelRef{Key: key, MessageRef: messageRef, ChannelRef: channelRef})
}
