package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, username, nickname string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	SetPresence(ctx context.Context, id int64, online bool, at time.Time) error
}
