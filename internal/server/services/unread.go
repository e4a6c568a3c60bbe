package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

// UnreadService keeps per-user read positions and derives unread counts
// from the store on every call.
type UnreadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewUnreadService(db *sql.DB, rm repomanager.RepositoryManager) *UnreadService {
	return &UnreadService{db: db, repomanager: rm}
}

// MarkRead advances the user's read position to the sequence of
// uptoMessageID. The position never moves backwards. It returns the stored
// position and the unread count after the update.
func (u *UnreadService) MarkRead(ctx context.Context, userID, conversationID, uptoMessageID int64) (int64, int64, error) {
	if err := requireParticipant(ctx, u.db, u.repomanager, conversationID, userID); err != nil {
		return 0, 0, err
	}

	msg, err := u.repomanager.Messages(u.db).GetByID(ctx, uptoMessageID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, 0, fmt.Errorf("%w: message %d", common.ErrorNotFound, uptoMessageID)
		}
		return 0, 0, err
	}
	if msg.ConversationID != conversationID {
		return 0, 0, fmt.Errorf("%w: message %d is not in conversation %d", common.ErrInvalidContent, uptoMessageID, conversationID)
	}

	stored, err := u.repomanager.ReadStates(u.db).Advance(ctx, conversationID, userID, msg.Sequence)
	if err != nil {
		return 0, 0, err
	}

	unread, err := u.repomanager.Messages(u.db).CountUnread(ctx, conversationID, userID)
	if err != nil {
		return 0, 0, err
	}
	return stored, unread, nil
}

// UnreadCount counts messages in the conversation that are newer than the
// user's read position, not sent by the user and not recalled.
func (u *UnreadService) UnreadCount(ctx context.Context, userID, conversationID int64) (int64, error) {
	if err := requireParticipant(ctx, u.db, u.repomanager, conversationID, userID); err != nil {
		return 0, err
	}
	return u.repomanager.Messages(u.db).CountUnread(ctx, conversationID, userID)
}

// ReadBy reports, for every participant other than the sender, whether
// they have read the message: their read position is at or past its
// sequence. Only participants of the message's conversation may ask.
func (u *UnreadService) ReadBy(ctx context.Context, userID, messageID int64) (*models.MessageStatus, error) {
	msg, err := u.repomanager.Messages(u.db).GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: message %d", common.ErrorNotFound, messageID)
		}
		return nil, err
	}
	if err := requireParticipant(ctx, u.db, u.repomanager, msg.ConversationID, userID); err != nil {
		return nil, err
	}

	positions, err := u.repomanager.ReadStates(u.db).ListForConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	status := &models.MessageStatus{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Sequence:       msg.Sequence,
		Receipts:       make([]models.Receipt, 0, len(positions)),
	}
	for _, p := range positions {
		if p.UserID == msg.SenderID {
			continue
		}
		r := models.Receipt{UserID: p.UserID, DisplayName: p.DisplayName(), Status: models.ReceiptUnread}
		if p.LastReadSequence >= msg.Sequence {
			r.Status = models.ReceiptRead
			r.UpdatedAt = p.UpdatedAt
		}
		status.Receipts = append(status.Receipts, r)
	}
	return status, nil
}
