package readstates

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Advance moves the read position forward to sequence and returns the
// stored value. A lower sequence leaves the position unchanged.
func (r *PostgresRepository) Advance(ctx context.Context, conversationID, userID, sequence int64) (int64, error) {
	query :=
		`INSERT INTO read_states (conversation_id, user_id, last_read_sequence, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (conversation_id, user_id) DO UPDATE
		 SET last_read_sequence = GREATEST(read_states.last_read_sequence, EXCLUDED.last_read_sequence),
		     updated_at = now()
		 RETURNING last_read_sequence
		 `

	var stored int64
	if err := r.db.QueryRowContext(ctx, query, conversationID, userID, sequence).Scan(&stored); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

// ListForConversation returns the read position of every current
// participant, ordered by user id. Participants who never read anything
// are at zero.
func (r *PostgresRepository) ListForConversation(ctx context.Context, conversationID int64) ([]*models.ParticipantRead, error) {
	query :=
		`SELECT cp.user_id, u.username, u.nickname,
		        COALESCE(rs.last_read_sequence, 0), rs.updated_at
		 FROM conversation_participants cp
		 JOIN users u ON u.id = cp.user_id
		 LEFT JOIN read_states rs ON rs.conversation_id = cp.conversation_id AND rs.user_id = cp.user_id
		 WHERE cp.conversation_id = $1
		 ORDER BY cp.user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []*models.ParticipantRead
	for rows.Next() {
		p := &models.ParticipantRead{ReadState: models.ReadState{ConversationID: conversationID}}
		var updated sql.NullTime
		if err := rows.Scan(&p.UserID, &p.Username, &p.Nickname, &p.LastReadSequence, &updated); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if updated.Valid {
			p.UpdatedAt = updated.Time
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}
