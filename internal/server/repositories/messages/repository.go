package messages

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	ListSince(ctx context.Context, conversationID, sinceSequence int64, limit int) ([]*models.Message, error)
	SoftDelete(ctx context.Context, id int64) error
	CountUnread(ctx context.Context, conversationID, userID int64) (int64, error)
}
