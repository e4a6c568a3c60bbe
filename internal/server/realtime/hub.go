package realtime

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
)

// Publisher pushes events to users' private channels and to everyone.
type Publisher interface {
	PushToUser(ctx context.Context, userID int64, event string, payload any) int
	Broadcast(ctx context.Context, event string, payload any, exceptUserID int64) int
}

// Hub resolves private channels through the session registry. Pushes never
// block: a full or closed connection just misses the event, which its
// client recovers by pulling.
type Hub struct {
	registry *session.Registry
	logger   logging.Logger
}

func NewHub(registry *session.Registry, logger logging.Logger) *Hub {
	return &Hub{registry: registry, logger: logger.With("module", "hub")}
}

var _ Publisher = (*Hub)(nil)

// PushToUser delivers to every session on the user's private channel and
// returns how many accepted the frame.
func (h *Hub) PushToUser(ctx context.Context, userID int64, event string, payload any) int {
	subs := h.registry.Subscribers(common.PrivateChannel(userID))
	if len(subs) == 0 {
		return 0
	}
	frame, err := Encode(event, payload)
	if err != nil {
		h.logger.Error(ctx, "encode failed", "event", event, "error", err)
		return 0
	}
	return h.deliver(ctx, subs, frame, event)
}

// Broadcast delivers to every registered session except those of
// exceptUserID, over an explicit registry snapshot.
func (h *Hub) Broadcast(ctx context.Context, event string, payload any, exceptUserID int64) int {
	frame, err := Encode(event, payload)
	if err != nil {
		h.logger.Error(ctx, "encode failed", "event", event, "error", err)
		return 0
	}
	snapshot := h.registry.Snapshot()
	targets := snapshot[:0]
	for _, s := range snapshot {
		if s.UserID != exceptUserID {
			targets = append(targets, s)
		}
	}
	return h.deliver(ctx, targets, frame, event)
}

func (h *Hub) deliver(ctx context.Context, targets []*session.Session, frame []byte, event string) int {
	n := 0
	for _, s := range targets {
		if err := s.Send(frame); err != nil {
			h.logger.Warn(ctx, "push dropped", "event", event, "user_id", s.UserID, "conn_id", s.ID, "error", err)
			continue
		}
		n++
	}
	return n
}
