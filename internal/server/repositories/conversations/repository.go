package conversations

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, conv *models.Conversation, privateKey string) (*models.Conversation, error)
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	FindPrivate(ctx context.Context, privateKey string) (*models.Conversation, error)

	AddParticipant(ctx context.Context, conversationID, userID int64, role models.Role) error
	RemoveParticipant(ctx context.Context, conversationID, userID int64) error
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	ListParticipants(ctx context.Context, conversationID int64) ([]*models.Participant, error)

	GetRole(ctx context.Context, conversationID, userID int64) (models.Role, error)
	SetRole(ctx context.Context, conversationID, userID int64, role models.Role) error

	NextSequence(ctx context.Context, conversationID int64) (int64, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.ConversationSummary, error)
}
