package conversations

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

// PrivateKey is the dedup key of the private conversation between a and b.
func PrivateKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Create inserts conv and fills in its generated fields. privateKey is
// stored only for private conversations.
func (r *PostgresRepository) Create(ctx context.Context, conv *models.Conversation, privateKey string) (*models.Conversation, error) {
	query :=
		`INSERT INTO conversations (kind, name, owner_id, private_key)
		 VALUES ($1, $2, $3, NULLIF($4, ''))
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, string(conv.Kind), conv.Name, conv.OwnerID, privateKey).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return conv, nil
}

const selectConversation = `SELECT id, kind, name, owner_id, created_at, updated_at, last_sequence FROM conversations`

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	var kind string
	err := row.Scan(&c.ID, &kind, &c.Name, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt, &c.LastSequence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Kind = models.ConversationKind(kind)
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectConversation+` WHERE id = $1`, id))
}

func (r *PostgresRepository) FindPrivate(ctx context.Context, privateKey string) (*models.Conversation, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectConversation+` WHERE private_key = $1`, privateKey))
}

// AddParticipant is idempotent; an existing participant keeps their role.
func (r *PostgresRepository) AddParticipant(ctx context.Context, conversationID, userID int64, role models.Role) error {
	query :=
		`INSERT INTO conversation_participants (conversation_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `
	if _, err := r.db.ExecContext(ctx, query, conversationID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query =
		`INSERT INTO conversation_member_roles (conversation_id, user_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING
		 `
	if _, err := r.db.ExecContext(ctx, query, conversationID, userID, string(role)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	query :=
		`DELETE FROM conversation_participants
		 WHERE conversation_id = $1 AND user_id = $2
		 `
	res, err := r.db.ExecContext(ctx, query, conversationID, userID)
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

	query =
		`DELETE FROM conversation_member_roles
		 WHERE conversation_id = $1 AND user_id = $2
		 `
	if _, err := r.db.ExecContext(ctx, query, conversationID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM conversation_participants
		   WHERE conversation_id = $1 AND user_id = $2
		 )
		 `
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	query :=
		`SELECT user_id FROM conversation_participants
		 WHERE conversation_id = $1
		 ORDER BY user_id
		 `
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) ListParticipants(ctx context.Context, conversationID int64) ([]*models.Participant, error) {
	query :=
		`SELECT u.id, u.username, u.nickname, u.avatar, u.is_online, u.last_seen, COALESCE(r.role, 'member')
		 FROM conversation_participants p
		 JOIN users u ON u.id = p.user_id
		 LEFT JOIN conversation_member_roles r ON r.conversation_id = p.conversation_id AND r.user_id = p.user_id
		 WHERE p.conversation_id = $1
		 ORDER BY p.joined_at, u.id
		 `
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		var role string
		if err := rows.Scan(&p.ID, &p.Username, &p.Nickname, &p.Avatar, &p.Online, &p.LastSeen, &role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		p.Role = models.Role(role)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

// GetRole returns ErrorNotFound when userID is not a participant.
func (r *PostgresRepository) GetRole(ctx context.Context, conversationID, userID int64) (models.Role, error) {
	query :=
		`SELECT COALESCE(r.role, 'member')
		 FROM conversation_participants p
		 LEFT JOIN conversation_member_roles r ON r.conversation_id = p.conversation_id AND r.user_id = p.user_id
		 WHERE p.conversation_id = $1 AND p.user_id = $2
		 `
	var role string
	err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return models.Role(role), nil
}

func (r *PostgresRepository) SetRole(ctx context.Context, conversationID, userID int64, role models.Role) error {
	query :=
		`INSERT INTO conversation_member_roles (conversation_id, user_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (conversation_id, user_id) DO UPDATE SET role = EXCLUDED.role
		 `
	if _, err := r.db.ExecContext(ctx, query, conversationID, userID, string(role)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// NextSequence bumps the conversation's sequence counter and touches
// updated_at. The row lock it takes serializes concurrent senders until the
// surrounding transaction ends.
func (r *PostgresRepository) NextSequence(ctx context.Context, conversationID int64) (int64, error) {
	query :=
		`UPDATE conversations SET last_sequence = last_sequence + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING last_sequence
		 `

	var seq int64
	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

// ListForUser returns the user's conversations, most recent activity first:
// the newest non-deleted message time, else the creation time.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
	query :=
		`SELECT c.id, c.kind, c.name, c.created_at,
		        COALESCE(peer.display_name, ''),
		        m.id, m.sequence, m.sender_id, COALESCE(NULLIF(su.nickname, ''), su.username), m.type, m.content, m.created_at
		 FROM conversations c
		 JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
		 LEFT JOIN LATERAL (
		   SELECT COALESCE(NULLIF(u.nickname, ''), u.username) AS display_name
		   FROM conversation_participants op
		   JOIN users u ON u.id = op.user_id
		   WHERE op.conversation_id = c.id AND op.user_id <> $1
		   LIMIT 1
		 ) peer ON c.kind = 'private'
		 LEFT JOIN LATERAL (
		   SELECT id, sequence, sender_id, type, content, created_at
		   FROM messages
		   WHERE conversation_id = c.id AND is_deleted = FALSE
		   ORDER BY sequence DESC
		   LIMIT 1
		 ) m ON TRUE
		 LEFT JOIN users su ON su.id = m.sender_id
		 ORDER BY COALESCE(m.created_at, c.created_at) DESC, c.id DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []*models.ConversationSummary
	for rows.Next() {
		var (
			s          models.ConversationSummary
			kind       string
			peerName   string
			msgID      sql.NullInt64
			msgSeq     sql.NullInt64
			senderID   sql.NullInt64
			senderName sql.NullString
			msgType    sql.NullString
			content    sql.NullString
			msgAt      sql.NullTime
		)
		err := rows.Scan(&s.ID, &kind, &s.Name, &s.CreatedAt, &peerName,
			&msgID, &msgSeq, &senderID, &senderName, &msgType, &content, &msgAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		s.Kind = models.ConversationKind(kind)
		s.DisplayName = s.Name
		if s.Kind == models.KindPrivate {
			s.DisplayName = peerName
		}
		if msgID.Valid {
			s.Preview = models.NewPreview(&models.Message{
				ID:         msgID.Int64,
				Sequence:   msgSeq.Int64,
				SenderID:   senderID.Int64,
				SenderName: senderName.String,
				Type:       models.MessageType(msgType.String),
				Content:    content.String,
				CreatedAt:  msgAt.Time,
			})
		}
		s.LastActivity = s.Activity()
		list = append(list, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}
