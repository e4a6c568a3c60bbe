// Package session holds the in-process, non-authoritative connection state:
// authenticated sessions, the registry that indexes them and the room table.
package session

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

// Sender is the outbound half of a live connection.
type Sender interface {
	Send(payload []byte) error
	Close(code int, reason string)
}

// Close codes used when the server ends a session.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseReplaced        = 4001
)

// Session is one authenticated connection. It is created on successful
// authentication and dropped on disconnect; nothing in it survives either.
type Session struct {
	ID          string
	UserID      int64
	DisplayName string
	CreatedAt   time.Time

	conn Sender

	mu    sync.Mutex
	rooms map[int64]struct{}
}

func New(id string, userID int64, displayName string, conn Sender) *Session {
	return &Session{
		ID:          id,
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
		conn:        conn,
		rooms:       make(map[int64]struct{}),
	}
}

// Channel is the private delivery channel of the session's user.
func (s *Session) Channel() string {
	return common.PrivateChannel(s.UserID)
}

func (s *Session) Send(payload []byte) error {
	return s.conn.Send(payload)
}

func (s *Session) Close(code int, reason string) {
	s.conn.Close(code, reason)
}

// addRoom reports whether the room was newly added.
func (s *Session) addRoom(conversationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[conversationID]; ok {
		return false
	}
	s.rooms[conversationID] = struct{}{}
	return true
}

func (s *Session) removeRoom(conversationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[conversationID]; !ok {
		return false
	}
	delete(s.rooms, conversationID)
	return true
}

func (s *Session) takeRooms() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.rooms = make(map[int64]struct{})
	return ids
}

// InRoom reports whether the session currently views the conversation.
func (s *Session) InRoom(conversationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[conversationID]
	return ok
}
