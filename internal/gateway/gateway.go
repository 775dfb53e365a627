// Package gateway defines the ports toward the hosting chat platform. The
// core decides what to send and to whom; rendering, permissions and transport
// stay on the platform side of these interfaces.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/remember-rp/concierge/internal/panel"
)

// LogMessenger is a development stand-in for the platform message API: every
// write lands in the log, channel history is always empty, and edits on
// unknown refs report the message as missing. Safe for concurrent use; the
// handlers and the sweeper refresh panels from separate goroutines.
type LogMessenger struct {
	logger *slog.Logger

	mu    sync.Mutex
	known map[string]bool
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger, known: map[string]bool{}}
}

func (m *LogMessenger) CreateMessage(_ context.Context, channelRef, content string) (string, error) {
	ref := uuid.NewString()
	m.mu.Lock()
	m.known[ref] = true
	m.mu.Unlock()
	m.logger.Info("message created", "channel", channelRef, "message", ref, "bytes", len(content))
	return ref, nil
}

func (m *LogMessenger) EditMessage(_ context.Context, channelRef, messageRef, content string) error {
	m.mu.Lock()
	known := m.known[messageRef]
	m.mu.Unlock()
	if !known {
		return panel.ErrMessageMissing
	}
	m.logger.Info("message edited", "channel", channelRef, "message", messageRef, "bytes", len(content))
	return nil
}

func (m *LogMessenger) ChannelHasHistory(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct {
	logger    *slog.Logger
	oversight string
}

func NewLogNotifier(logger *slog.Logger, oversightRef string) *LogNotifier {
	return &LogNotifier{logger: logger, oversight: oversightRef}
}

func (n *LogNotifier) NotifyParty(_ context.Context, partyRef, message string) error {
	n.logger.Info("notify party", "party", partyRef, "message", message)
	return nil
}

func (n *LogNotifier) NotifyOversight(_ context.Context, message string) error {
	n.logger.Info("notify oversight", "recipient", n.oversight, "message", message)
	return nil
}
