package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates the user if the username is free; otherwise it returns the
// existing row, updating the nickname when a non-empty one is given.
func (r *PostgresRepository) Upsert(ctx context.Context, username, nickname string) (*models.User, error) {
	query :=
		`INSERT INTO users (username, nickname)
		 VALUES ($1, $2)
		 ON CONFLICT (username) DO UPDATE
		 SET nickname = COALESCE(NULLIF(EXCLUDED.nickname, ''), users.nickname)
		 RETURNING id, username, nickname, avatar, is_online, last_seen
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username, nickname).
		Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Online, &user.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, username, nickname, avatar, is_online, last_seen FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Online, &user.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) SetPresence(ctx context.Context, id int64, online bool, at time.Time) error {
	query :=
		`UPDATE users SET is_online = $2, last_seen = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, online, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
