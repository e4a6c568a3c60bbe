package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
)

// RoomService tracks which conversations a session is currently viewing.
// Rooms never affect delivery, which always goes to private channels.
type RoomService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	rooms       *session.Rooms
	logger      logging.Logger
}

func NewRoomService(db *sql.DB, rm repomanager.RepositoryManager, rooms *session.Rooms, logger logging.Logger) *RoomService {
	return &RoomService{db: db, repomanager: rm, rooms: rooms, logger: logger.With("module", "rooms")}
}

// Join subscribes s to the conversation room. Only participants may join;
// joining twice is a no-op.
func (r *RoomService) Join(ctx context.Context, s *session.Session, conversationID int64) error {
	if err := requireParticipant(ctx, r.db, r.repomanager, conversationID, s.UserID); err != nil {
		return err
	}
	if r.rooms.Join(s, conversationID) {
		r.logger.Debug(ctx, "joined", "conn_id", s.ID, "conversation_id", conversationID)
	}
	return nil
}

// Leave is idempotent and never fails.
func (r *RoomService) Leave(ctx context.Context, s *session.Session, conversationID int64) {
	if r.rooms.Leave(s, conversationID) {
		r.logger.Debug(ctx, "left", "conn_id", s.ID, "conversation_id", conversationID)
	}
}

// LeaveAll drops every room subscription of s, on disconnect.
func (r *RoomService) LeaveAll(s *session.Session) []int64 {
	return r.rooms.LeaveAll(s)
}

// DropUser unsubscribes every session of userID from the conversation.
func (r *RoomService) DropUser(conversationID, userID int64) int {
	return r.rooms.RemoveUser(conversationID, userID)
}
