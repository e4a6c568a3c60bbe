package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/cache"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

// UserDirectory resolves display info of users. It reads through a
// transient cache and falls back to the store whenever the cache fails.
type UserDirectory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.Cache
	ttl         time.Duration
	logger      logging.Logger
}

func NewUserDirectory(db *sql.DB, rm repomanager.RepositoryManager, c cache.Cache, ttl time.Duration, logger logging.Logger) *UserDirectory {
	return &UserDirectory{
		db:          db,
		repomanager: rm,
		cache:       c,
		ttl:         ttl,
		logger:      logger.With("module", "directory"),
	}
}

func userCacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// Get returns the user with the given id or common.ErrorNotFound.
func (d *UserDirectory) Get(ctx context.Context, id int64) (*models.User, error) {
	key := userCacheKey(id)

	if d.cache != nil {
		raw, err := d.cache.Get(ctx, key)
		switch {
		case err == nil:
			u := &models.User{}
			if jerr := json.Unmarshal([]byte(raw), u); jerr == nil {
				return u, nil
			}
			d.logger.Warn(ctx, "corrupt cache entry", "key", key)
		case !errors.Is(err, cache.ErrMiss):
			d.logger.Warn(ctx, "cache get failed", "key", key, "error", err)
		}
	}

	u, err := d.repomanager.Users(d.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if raw, err := json.Marshal(u); err == nil {
			if err := d.cache.Set(ctx, key, string(raw), d.ttl); err != nil {
				d.logger.Warn(ctx, "cache set failed", "key", key, "error", err)
			}
		}
	}
	return u, nil
}

// Forget drops the cached entry of a user.
func (d *UserDirectory) Forget(ctx context.Context, id int64) {
	if d.cache == nil {
		return
	}
	if _, err := d.cache.Del(ctx, userCacheKey(id)); err != nil {
		d.logger.Warn(ctx, "cache del failed", "user_id", id, "error", err)
	}
}
