package session

import "sync"

type roomShard struct {
	mu      sync.RWMutex
	members map[int64]map[string]*Session
}

// Rooms maps conversation ids to the sessions currently viewing them. It
// gates pull operations only; message fan-out never consults it.
type Rooms struct {
	shards [shardCount]roomShard
}

func NewRooms() *Rooms {
	r := &Rooms{}
	for i := range r.shards {
		r.shards[i].members = make(map[int64]map[string]*Session)
	}
	return r
}

// Join subscribes s to the room. Joining twice is a no-op; the result
// reports whether anything changed.
func (r *Rooms) Join(s *Session, conversationID int64) bool {
	if !s.addRoom(conversationID) {
		return false
	}
	sh := &r.shards[shardOfID(conversationID)]
	sh.mu.Lock()
	m := sh.members[conversationID]
	if m == nil {
		m = make(map[string]*Session)
		sh.members[conversationID] = m
	}
	m[s.ID] = s
	sh.mu.Unlock()
	return true
}

// Leave unsubscribes s from the room; idempotent.
func (r *Rooms) Leave(s *Session, conversationID int64) bool {
	if !s.removeRoom(conversationID) {
		return false
	}
	r.drop(conversationID, s.ID)
	return true
}

// LeaveAll drops every room of s and returns their ids.
func (r *Rooms) LeaveAll(s *Session) []int64 {
	ids := s.takeRooms()
	for _, id := range ids {
		r.drop(id, s.ID)
	}
	return ids
}

// RemoveUser drops every session of userID from the room, used when the
// user stops being a participant.
func (r *Rooms) RemoveUser(conversationID, userID int64) int {
	n := 0
	for _, s := range r.Members(conversationID) {
		if s.UserID == userID && r.Leave(s, conversationID) {
			n++
		}
	}
	return n
}

func (r *Rooms) drop(conversationID int64, connID string) {
	sh := &r.shards[shardOfID(conversationID)]
	sh.mu.Lock()
	if m := sh.members[conversationID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(sh.members, conversationID)
		}
	}
	sh.mu.Unlock()
}

// Members returns the sessions in the room.
func (r *Rooms) Members(conversationID int64) []*Session {
	sh := &r.shards[shardOfID(conversationID)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	m := sh.members[conversationID]
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}
