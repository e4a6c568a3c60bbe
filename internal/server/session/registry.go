package session

import (
	"sync"
)

type connShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

type userShard struct {
	mu    sync.RWMutex
	users map[int64]*Session
}

type channelShard struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Session
}

// Registry indexes live sessions by connection id, by user and by
// subscribed channel. It enforces one active session per user.
//
// Lock order is user shard, then connection shard, then channel shard.
// Lookups take a single shard lock.
type Registry struct {
	conns    [shardCount]connShard
	users    [shardCount]userShard
	channels [shardCount]channelShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.conns {
		r.conns[i].sessions = make(map[string]*Session)
		r.users[i].users = make(map[int64]*Session)
		r.channels[i].subscribers = make(map[string]map[string]*Session)
	}
	return r
}

// Add registers s and subscribes it to its private channel. If the user
// already had a session, that session is unregistered and returned so the
// caller can close it.
func (r *Registry) Add(s *Session) (replaced *Session) {
	us := &r.users[shardOfID(s.UserID)]
	us.mu.Lock()
	defer us.mu.Unlock()

	if old, ok := us.users[s.UserID]; ok && old != s {
		r.dropLocked(old)
		replaced = old
	}
	us.users[s.UserID] = s

	cs := &r.conns[shardOf(s.ID)]
	cs.mu.Lock()
	cs.sessions[s.ID] = s
	cs.mu.Unlock()

	r.subscribe(s.Channel(), s)
	return replaced
}

// Remove unregisters s. It reports false when s is no longer the user's
// current session, e.g. after it was replaced.
func (r *Registry) Remove(s *Session) bool {
	us := &r.users[shardOfID(s.UserID)]
	us.mu.Lock()
	defer us.mu.Unlock()

	cur, ok := us.users[s.UserID]
	if !ok || cur != s {
		return false
	}
	delete(us.users, s.UserID)
	r.dropLocked(s)
	return true
}

// dropLocked removes s from the connection and channel indexes. The user
// shard of s must be held.
func (r *Registry) dropLocked(s *Session) {
	cs := &r.conns[shardOf(s.ID)]
	cs.mu.Lock()
	delete(cs.sessions, s.ID)
	cs.mu.Unlock()

	r.unsubscribe(s.Channel(), s)
}

func (r *Registry) subscribe(channel string, s *Session) {
	ch := &r.channels[shardOf(channel)]
	ch.mu.Lock()
	subs := ch.subscribers[channel]
	if subs == nil {
		subs = make(map[string]*Session)
		ch.subscribers[channel] = subs
	}
	subs[s.ID] = s
	ch.mu.Unlock()
}

func (r *Registry) unsubscribe(channel string, s *Session) {
	ch := &r.channels[shardOf(channel)]
	ch.mu.Lock()
	if subs := ch.subscribers[channel]; subs != nil {
		delete(subs, s.ID)
		if len(subs) == 0 {
			delete(ch.subscribers, channel)
		}
	}
	ch.mu.Unlock()
}

// Subscribers returns the sessions subscribed to channel.
func (r *Registry) Subscribers(channel string) []*Session {
	ch := &r.channels[shardOf(channel)]
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	subs := ch.subscribers[channel]
	out := make([]*Session, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// Snapshot copies the set of registered sessions. Sessions added or removed
// after a shard was visited are not reflected.
func (r *Registry) Snapshot() []*Session {
	var out []*Session
	for i := range r.conns {
		cs := &r.conns[i]
		cs.mu.RLock()
		for _, s := range cs.sessions {
			out = append(out, s)
		}
		cs.mu.RUnlock()
	}
	return out
}

func (r *Registry) Len() int {
	n := 0
	for i := range r.conns {
		cs := &r.conns[i]
		cs.mu.RLock()
		n += len(cs.sessions)
		cs.mu.RUnlock()
	}
	return n
}
