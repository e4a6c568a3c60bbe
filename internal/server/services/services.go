// Package services contains the server's business logic: message delivery,
// room membership, presence, unread accounting, conversation management,
// the user directory and blob upload presigning.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/ordering"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

// Actor is the authenticated user on whose behalf an operation runs.
// DisplayName may be empty; services resolve it when they need it.
type Actor struct {
	UserID      int64
	DisplayName string
}

// OrderingView is the part of the conversation ordering cache the services
// keep up to date.
type OrderingView interface {
	Touch(userID int64, u ordering.Update)
	Remove(userID, conversationID int64)
	Invalidate(userID int64)
}

// requireParticipant fails with common.ErrNotAuthorized unless userID is a
// participant of the conversation. Store failures are returned wrapped.
func requireParticipant(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager, conversationID, userID int64) error {
	ok, err := rm.Conversations(db).IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("participant check: %w", err)
	}
	if !ok {
		return common.ErrNotAuthorized
	}
	return nil
}

// isDomainError reports whether err is one of the sentinel errors callers
// are expected to handle, as opposed to an infrastructure failure.
func isDomainError(err error) bool {
	for _, target := range []error{
		common.ErrNotAuthorized,
		common.ErrInvalidContent,
		common.ErrorNotFound,
		common.ErrRecallExpired,
		common.ErrDeliveryFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
