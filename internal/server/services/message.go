package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/ordering"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

const (
	// MaxContentRunes bounds a single message body.
	MaxContentRunes = 8000

	DefaultPageSize = 100
	MaxPageSize     = 500
)

// SubmitRequest is the payload of send_message.
type SubmitRequest struct {
	ConversationID int64
	Content        string
	Type           models.MessageType
}

// MessageService is the delivery pipeline: authorize, validate, persist with
// a per-conversation sequence, then fan out to every current participant.
type MessageService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	publisher      realtime.Publisher
	view           OrderingView
	directory      *UserDirectory
	persistTimeout time.Duration
	recallWindow   time.Duration
	logger         logging.Logger
	now            func() time.Time
}

func NewMessageService(db *sql.DB, rm repomanager.RepositoryManager, publisher realtime.Publisher, view OrderingView,
	directory *UserDirectory, persistTimeout, recallWindow time.Duration, logger logging.Logger) *MessageService {
	return &MessageService{
		db:             db,
		repomanager:    rm,
		publisher:      publisher,
		view:           view,
		directory:      directory,
		persistTimeout: persistTimeout,
		recallWindow:   recallWindow,
		logger:         logger.With("module", "delivery"),
		now:            time.Now,
	}
}

// validateContent rejects empty bodies, unknown types and oversized text.
func validateContent(content string, typ models.MessageType) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", common.ErrInvalidContent)
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown type %q", common.ErrInvalidContent, typ)
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return fmt.Errorf("%w: content too long", common.ErrInvalidContent)
	}
	return nil
}

// Submit persists a message and delivers it. Once persistence starts it
// runs to completion even if ctx is cancelled; fan-out failures for single
// recipients are logged and never fail the call.
func (s *MessageService) Submit(ctx context.Context, actor Actor, req SubmitRequest) (*models.Message, error) {
	if err := requireParticipant(ctx, s.db, s.repomanager, req.ConversationID, actor.UserID); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrDeliveryFailed, err)
	}
	if err := validateContent(req.Content, req.Type); err != nil {
		return nil, err
	}

	senderName := actor.DisplayName
	if senderName == "" && s.directory != nil {
		if u, err := s.directory.Get(ctx, actor.UserID); err == nil {
			senderName = u.DisplayName()
		} else {
			s.logger.Warn(ctx, "sender lookup failed", "user_id", actor.UserID, "error", err)
		}
	}

	msg := &models.Message{
		ConversationID: req.ConversationID,
		SenderID:       actor.UserID,
		SenderName:     senderName,
		Content:        req.Content,
		Type:           req.Type,
	}

	err := dbx.WithDetachedTx(ctx, s.db, s.persistTimeout, func(ctx context.Context, tx dbx.DBTX) error {
		seq, err := s.repomanager.Conversations(tx).NextSequence(ctx, req.ConversationID)
		if err != nil {
			return err
		}
		msg.Sequence = seq
		_, err = s.repomanager.Messages(tx).Create(ctx, msg)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "persist failed", "conversation_id", req.ConversationID, "user_id", actor.UserID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDeliveryFailed, err)
	}

	fctx, cancel := dbx.Detach(ctx, s.persistTimeout)
	defer cancel()
	s.fanOut(fctx, msg)

	return msg, nil
}

// fanOut pushes receive_message then conversation_updated to each
// participant, resolving the roster after commit.
func (s *MessageService) fanOut(ctx context.Context, msg *models.Message) {
	participants, err := s.repomanager.Conversations(s.db).ListParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		s.logger.Error(ctx, "fan-out roster failed", "conversation_id", msg.ConversationID, "message_id", msg.ID, "error", err)
		return
	}

	preview := models.NewPreview(msg)
	received := realtime.ReceiveMessagePayload{Message: msg}
	updated := realtime.ConversationUpdatedPayload{ConversationID: msg.ConversationID, LastMessagePreview: preview}

	for _, uid := range participants {
		delivered := s.publisher.PushToUser(ctx, uid, realtime.EventReceiveMessage, received)
		s.publisher.PushToUser(ctx, uid, realtime.EventConversationUpdated, updated)
		if s.view != nil {
			s.view.Touch(uid, ordering.Update{ConversationID: msg.ConversationID, Preview: preview})
		}
		if delivered == 0 {
			s.logger.Debug(ctx, "recipient offline", "user_id", uid, "message_id", msg.ID)
		}
	}
}

// Recall soft-deletes a message. Only its sender may recall it, and only
// within the recall window. Recalling twice is a no-op.
func (s *MessageService) Recall(ctx context.Context, actor Actor, messageID int64) error {
	msg, err := s.repomanager.Messages(s.db).GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actor.UserID {
		return common.ErrNotAuthorized
	}
	if msg.Deleted {
		return nil
	}
	if s.recallWindow > 0 && s.now().Sub(msg.CreatedAt) > s.recallWindow {
		return common.ErrRecallExpired
	}

	if err := s.repomanager.Messages(s.db).SoftDelete(ctx, messageID); err != nil {
		return err
	}

	fctx, cancel := dbx.Detach(ctx, s.persistTimeout)
	defer cancel()

	participants, err := s.repomanager.Conversations(s.db).ListParticipantIDs(fctx, msg.ConversationID)
	if err != nil {
		s.logger.Error(fctx, "recall roster failed", "message_id", messageID, "error", err)
		return nil
	}
	payload := realtime.MessageRecalledPayload{ConversationID: msg.ConversationID, MessageID: messageID}
	for _, uid := range participants {
		s.publisher.PushToUser(fctx, uid, realtime.EventMessageRecalled, payload)
		if s.view != nil {
			s.view.Invalidate(uid)
		}
	}
	return nil
}

// ListMessages returns messages after sinceSequence in sequence order; it is
// the reconnect resynchronization path.
func (s *MessageService) ListMessages(ctx context.Context, actor Actor, conversationID, sinceSequence int64, limit int) ([]*models.Message, error) {
	if err := requireParticipant(ctx, s.db, s.repomanager, conversationID, actor.UserID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if sinceSequence < 0 {
		sinceSequence = 0
	}
	return s.repomanager.Messages(s.db).ListSince(ctx, conversationID, sinceSequence, limit)
}
