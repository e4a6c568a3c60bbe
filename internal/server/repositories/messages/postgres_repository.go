package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// Create inserts msg with the sequence already assigned by the caller and
// fills in ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (conversation_id, sender_id, content, type, sequence)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		msg.ConversationID, msg.SenderID, msg.Content, string(msg.Type), msg.Sequence).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

const selectMessage = `SELECT m.id, m.conversation_id, m.sender_id, COALESCE(NULLIF(u.nickname, ''), u.username),
	m.content, m.type, m.sequence, m.created_at, m.is_deleted
	FROM messages m
	JOIN users u ON u.id = m.sender_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*models.Message, error) {
	m := &models.Message{}
	var typ string
	err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName,
		&m.Content, &typ, &m.Sequence, &m.CreatedAt, &m.Deleted)
	if err != nil {
		return nil, err
	}
	m.Type = models.MessageType(typ)
	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, selectMessage+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

// ListSince returns up to limit messages with sequence > sinceSequence in
// ascending sequence order. Recalled messages are included, flagged.
func (r *PostgresRepository) ListSince(ctx context.Context, conversationID, sinceSequence int64, limit int) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		selectMessage+` WHERE m.conversation_id = $1 AND m.sequence > $2 ORDER BY m.sequence LIMIT $3`,
		conversationID, sinceSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id int64) error {
	query :=
		`UPDATE messages SET is_deleted = TRUE
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id)
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

// CountUnread counts non-deleted messages from others past the user's read
// position in the conversation.
func (r *PostgresRepository) CountUnread(ctx context.Context, conversationID, userID int64) (int64, error) {
	query :=
		`SELECT COUNT(*) FROM messages m
		 WHERE m.conversation_id = $1
		   AND m.sender_id <> $2
		   AND m.is_deleted = FALSE
		   AND m.sequence > COALESCE(
		     (SELECT rs.last_read_sequence FROM read_states rs
		      WHERE rs.conversation_id = $1 AND rs.user_id = $2), 0)
		 `
	var n int64
	if err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
