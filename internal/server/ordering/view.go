// Package ordering keeps each user's conversation list ordered by recent
// activity. The lists are a cache derived from the store and can be
// dropped at any time.
package ordering

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

const shardCount = 32

// Loader rebuilds a user's list from the store, most recent first.
type Loader func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error)

// Update moves a conversation to the head of a user's list. Summary, when
// set, is used to insert a conversation the cached list does not have yet.
type Update struct {
	ConversationID int64
	Preview        *models.Preview
	Summary        *models.ConversationSummary
}

type shard struct {
	mu       sync.Mutex
	lists    map[int64][]*models.ConversationSummary
	versions map[int64]uint64
}

// View is safe for concurrent use. No lock is held while the loader runs;
// a load that overlaps a Touch or Invalidate for the same user is returned
// to its caller but not cached.
type View struct {
	shards [shardCount]shard
	load   Loader
}

func NewView(load Loader) *View {
	v := &View{load: load}
	for i := range v.shards {
		v.shards[i].lists = make(map[int64][]*models.ConversationSummary)
		v.shards[i].versions = make(map[int64]uint64)
	}
	return v
}

func (v *View) shard(userID int64) *shard {
	u := uint64(userID)
	h := uint32(2166136261)
	for i := 0; i < 8; i++ {
		h ^= uint32(byte(u >> (8 * i)))
		h *= 16777619
	}
	return &v.shards[h%shardCount]
}

// List returns a copy of the user's ordered conversation list.
func (v *View) List(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
	sh := v.shard(userID)

	sh.mu.Lock()
	if list, ok := sh.lists[userID]; ok {
		out := clone(list)
		sh.mu.Unlock()
		return out, nil
	}
	version := sh.versions[userID]
	sh.mu.Unlock()

	list, err := v.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	sh.mu.Lock()
	if _, ok := sh.lists[userID]; !ok && sh.versions[userID] == version {
		sh.lists[userID] = clone(list)
	}
	sh.mu.Unlock()

	return clone(list), nil
}

// Touch applies u to the user's cached list. A preview older (by sequence)
// than the one already shown never replaces it. Uncached users are left to
// the next load.
func (v *View) Touch(userID int64, u Update) {
	sh := v.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.versions[userID]++
	list, ok := sh.lists[userID]
	if !ok {
		return
	}

	idx := -1
	for i, s := range list {
		if s.ID == u.ConversationID {
			idx = i
			break
		}
	}

	var entry models.ConversationSummary
	switch {
	case idx >= 0:
		entry = *list[idx]
		if entry.Preview != nil && u.Preview != nil && u.Preview.Sequence < entry.Preview.Sequence {
			return
		}
		list = append(list[:idx:idx], list[idx+1:]...)
	case u.Summary != nil:
		entry = *u.Summary
	default:
		delete(sh.lists, userID)
		return
	}

	if u.Preview != nil {
		p := *u.Preview
		entry.Preview = &p
	}
	entry.LastActivity = entry.Activity()

	head := make([]*models.ConversationSummary, 0, len(list)+1)
	head = append(head, &entry)
	sh.lists[userID] = append(head, list...)
}

// Remove drops a conversation from the user's cached list.
func (v *View) Remove(userID, conversationID int64) {
	sh := v.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.versions[userID]++
	list, ok := sh.lists[userID]
	if !ok {
		return
	}
	out := make([]*models.ConversationSummary, 0, len(list))
	for _, s := range list {
		if s.ID != conversationID {
			out = append(out, s)
		}
	}
	sh.lists[userID] = out
}

// Invalidate forgets the user's list; the next List reloads it.
func (v *View) Invalidate(userID int64) {
	sh := v.shard(userID)
	sh.mu.Lock()
	sh.versions[userID]++
	delete(sh.lists, userID)
	sh.mu.Unlock()
}

func clone(list []*models.ConversationSummary) []*models.ConversationSummary {
	out := make([]*models.ConversationSummary, len(list))
	for i, s := range list {
		c := *s
		if s.Preview != nil {
			p := *s.Preview
			c.Preview = &p
		}
		out[i] = &c
	}
	return out
}
