package readstates

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Advance(ctx context.Context, conversationID, userID, sequence int64) (int64, error)
	ListForConversation(ctx context.Context, conversationID int64) ([]*models.ParticipantRead, error)
}
