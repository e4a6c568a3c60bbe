package services

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
)

const presenceShards = 32

type presenceShard struct {
	mu     sync.Mutex
	owners map[int64]string
}

// PresenceTracker flips users online on authentication and offline when
// their session goes away. Every transition is persisted and broadcast to
// all other registered sessions. A session that was replaced by a newer one
// of the same user no longer owns the presence and its teardown is silent.
type PresenceTracker struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	publisher      realtime.Publisher
	persistTimeout time.Duration
	logger         logging.Logger
	now            func() time.Time

	shards [presenceShards]presenceShard
}

func NewPresenceTracker(db *sql.DB, rm repomanager.RepositoryManager, publisher realtime.Publisher,
	persistTimeout time.Duration, logger logging.Logger) *PresenceTracker {
	p := &PresenceTracker{
		db:             db,
		repomanager:    rm,
		publisher:      publisher,
		persistTimeout: persistTimeout,
		logger:         logger.With("module", "presence"),
		now:            time.Now,
	}
	for i := range p.shards {
		p.shards[i].owners = make(map[int64]string)
	}
	return p
}

func (p *PresenceTracker) shard(userID int64) *presenceShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return &p.shards[h.Sum32()%presenceShards]
}

// Online records s as the presence owner of its user and emits one
// online transition.
func (p *PresenceTracker) Online(ctx context.Context, s *session.Session) {
	sh := p.shard(s.UserID)
	sh.mu.Lock()
	sh.owners[s.UserID] = s.ID
	sh.mu.Unlock()

	p.transition(ctx, s.UserID, true)
}

// Offline emits the offline transition if s still owns its user's
// presence. It reports whether a transition happened.
func (p *PresenceTracker) Offline(ctx context.Context, s *session.Session) bool {
	sh := p.shard(s.UserID)
	sh.mu.Lock()
	owner, ok := sh.owners[s.UserID]
	if !ok || owner != s.ID {
		sh.mu.Unlock()
		return false
	}
	delete(sh.owners, s.UserID)
	sh.mu.Unlock()

	p.transition(ctx, s.UserID, false)
	return true
}

// Status returns the in-process presence state of a user.
func (p *PresenceTracker) Status(userID int64) string {
	sh := p.shard(userID)
	sh.mu.Lock()
	_, ok := sh.owners[userID]
	sh.mu.Unlock()
	if ok {
		return models.StatusOnline
	}
	return models.StatusOffline
}

func (p *PresenceTracker) transition(ctx context.Context, userID int64, online bool) {
	at := p.now().UTC()
	status := models.StatusOffline
	if online {
		status = models.StatusOnline
	}

	dctx, cancel := dbx.Detach(ctx, p.persistTimeout)
	defer cancel()

	if err := p.repomanager.Users(p.db).SetPresence(dctx, userID, online, at); err != nil {
		p.logger.Error(dctx, "persist presence failed", "user_id", userID, "status", status, "error", err)
	}

	n := p.publisher.Broadcast(dctx, realtime.EventUserStatus, realtime.UserStatusPayload{
		UserID:   userID,
		Status:   status,
		LastSeen: at,
	}, userID)
	p.logger.Debug(dctx, "presence", "user_id", userID, "status", status, "recipients", n)
}
