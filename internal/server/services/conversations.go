package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/ordering"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

// MaxGroupNameRunes bounds a group conversation name.
const MaxGroupNameRunes = 100

// ConversationView is the ordering view with its read side.
type ConversationView interface {
	OrderingView
	List(ctx context.Context, userID int64) ([]*models.ConversationSummary, error)
}

// StatusSource reports a user's live presence.
type StatusSource interface {
	Status(userID int64) string
}

// RoomDropper unsubscribes a user's sessions from a conversation room.
type RoomDropper interface {
	DropUser(conversationID, userID int64) int
}

// ConversationService creates conversations and manages group rosters.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   realtime.Publisher
	view        ConversationView
	directory   *UserDirectory
	presence    StatusSource
	rooms       RoomDropper
	logger      logging.Logger
}

func NewConversationService(db *sql.DB, rm repomanager.RepositoryManager, publisher realtime.Publisher, view ConversationView,
	directory *UserDirectory, presence StatusSource, rooms RoomDropper, logger logging.Logger) *ConversationService {
	return &ConversationService{
		db:          db,
		repomanager: rm,
		publisher:   publisher,
		view:        view,
		directory:   directory,
		presence:    presence,
		rooms:       rooms,
		logger:      logger.With("module", "conversations"),
	}
}

// List returns the user's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
	return s.view.List(ctx, userID)
}

// CreatePrivate returns the private conversation between actor and peer,
// creating it on first use. created reports whether a new one was made.
func (s *ConversationService) CreatePrivate(ctx context.Context, actor Actor, peerID int64) (conv *models.Conversation, created bool, err error) {
	if peerID == actor.UserID || peerID <= 0 {
		return nil, false, fmt.Errorf("%w: invalid peer", common.ErrInvalidContent)
	}

	peer, err := s.directory.Get(ctx, peerID)
	if err != nil {
		return nil, false, err
	}
	self, err := s.directory.Get(ctx, actor.UserID)
	if err != nil {
		return nil, false, err
	}

	key := conversations.PrivateKey(actor.UserID, peerID)
	repo := s.repomanager.Conversations(s.db)

	existing, err := repo.FindPrivate(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}

	conv = &models.Conversation{Kind: models.KindPrivate, OwnerID: actor.UserID}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := s.repomanager.Conversations(tx)
		if _, err := r.Create(ctx, conv, key); err != nil {
			return err
		}
		if err := r.AddParticipant(ctx, conv.ID, actor.UserID, models.RoleMember); err != nil {
			return err
		}
		return r.AddParticipant(ctx, conv.ID, peerID, models.RoleMember)
	})
	if err != nil {
		// A concurrent create of the same pair wins on the unique key.
		if existing, ferr := repo.FindPrivate(ctx, key); ferr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	s.announce(ctx, conv, actor.UserID, map[int64]string{
		actor.UserID: peer.DisplayName(),
		peerID:       self.DisplayName(),
	})
	return conv, true, nil
}

// CreateGroup creates a group owned by actor with the given members.
// Duplicate and self entries in memberIDs are ignored.
func (s *ConversationService) CreateGroup(ctx context.Context, actor Actor, name string, memberIDs []int64) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name required", common.ErrInvalidContent)
	}
	if len([]rune(name)) > MaxGroupNameRunes {
		return nil, fmt.Errorf("%w: group name too long", common.ErrInvalidContent)
	}

	members := uniqueIDs(memberIDs, actor.UserID)

	conv := &models.Conversation{Kind: models.KindGroup, Name: name, OwnerID: actor.UserID}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := s.repomanager.Conversations(tx)
		if _, err := r.Create(ctx, conv, ""); err != nil {
			return err
		}
		if err := r.AddParticipant(ctx, conv.ID, actor.UserID, models.RoleOwner); err != nil {
			return err
		}
		for _, id := range members {
			if err := r.AddParticipant(ctx, conv.ID, id, models.RoleMember); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := map[int64]string{actor.UserID: name}
	for _, id := range members {
		names[id] = name
	}
	s.announce(ctx, conv, actor.UserID, names)
	return conv, nil
}

// AddParticipants adds users to a group. The actor must be its owner or an
// admin. It returns the ids that were not participants before.
func (s *ConversationService) AddParticipants(ctx context.Context, actor Actor, conversationID int64, userIDs []int64) ([]int64, error) {
	conv, err := s.requireManager(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	candidates := uniqueIDs(userIDs, actor.UserID)
	var added []int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		added = added[:0]
		r := s.repomanager.Conversations(tx)
		for _, id := range candidates {
			ok, err := r.IsParticipant(ctx, conversationID, id)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if err := r.AddParticipant(ctx, conversationID, id, models.RoleMember); err != nil {
				return err
			}
			added = append(added, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(added))
	for _, id := range added {
		names[id] = conv.Name
	}
	s.announce(ctx, conv, actor.UserID, names)
	return added, nil
}

// RemoveParticipant removes target from a group. Members may leave on their
// own; otherwise the owner may remove anyone but themselves and admins may
// remove plain members. The removed user's room subscriptions and cached
// list entry go with it.
func (s *ConversationService) RemoveParticipant(ctx context.Context, actor Actor, conversationID, targetID int64) error {
	conv, actorRole, err := s.groupRole(ctx, actor, conversationID)
	if err != nil {
		return err
	}

	repo := s.repomanager.Conversations(s.db)
	targetRole, err := repo.GetRole(ctx, conversationID, targetID)
	if err != nil {
		return err
	}

	switch {
	case targetRole == models.RoleOwner:
		return fmt.Errorf("%w: owner cannot be removed", common.ErrNotAuthorized)
	case targetID == actor.UserID:
	case actorRole == models.RoleOwner:
	case actorRole == models.RoleAdmin && targetRole == models.RoleMember:
	default:
		return common.ErrNotAuthorized
	}

	if err := repo.RemoveParticipant(ctx, conv.ID, targetID); err != nil {
		return err
	}

	if s.rooms != nil {
		s.rooms.DropUser(conv.ID, targetID)
	}
	s.view.Remove(targetID, conv.ID)
	s.logger.Info(ctx, "participant removed", "conversation_id", conv.ID, "user_id", targetID, "by", actor.UserID)
	return nil
}

// RoleUpdate is the only mutable field set of a participant.
type RoleUpdate struct {
	UserID int64
	Role   models.Role
}

// SetRole promotes or demotes a participant between admin and member.
func (s *ConversationService) SetRole(ctx context.Context, actor Actor, conversationID int64, upd RoleUpdate) error {
	if upd.Role != models.RoleAdmin && upd.Role != models.RoleMember {
		return fmt.Errorf("%w: role must be admin or member", common.ErrInvalidContent)
	}

	if _, err := s.requireManager(ctx, actor, conversationID); err != nil {
		return err
	}

	repo := s.repomanager.Conversations(s.db)
	current, err := repo.GetRole(ctx, conversationID, upd.UserID)
	if err != nil {
		return err
	}
	if current == models.RoleOwner {
		return fmt.Errorf("%w: owner role is fixed", common.ErrNotAuthorized)
	}
	if current == upd.Role {
		return nil
	}
	return repo.SetRole(ctx, conversationID, upd.UserID, upd.Role)
}

// GetRole returns userID's role. The actor must be a participant.
func (s *ConversationService) GetRole(ctx context.Context, actor Actor, conversationID, userID int64) (models.Role, error) {
	if err := requireParticipant(ctx, s.db, s.repomanager, conversationID, actor.UserID); err != nil {
		return "", err
	}
	return s.repomanager.Conversations(s.db).GetRole(ctx, conversationID, userID)
}

// ListParticipants returns the roster with live presence.
func (s *ConversationService) ListParticipants(ctx context.Context, actor Actor, conversationID int64) ([]*models.Participant, error) {
	if err := requireParticipant(ctx, s.db, s.repomanager, conversationID, actor.UserID); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Conversations(s.db).ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if s.presence != nil {
		for _, p := range list {
			p.Online = s.presence.Status(p.ID) == models.StatusOnline
		}
	}
	return list, nil
}

func (s *ConversationService) groupRole(ctx context.Context, actor Actor, conversationID int64) (*models.Conversation, models.Role, error) {
	repo := s.repomanager.Conversations(s.db)
	conv, err := repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	role, err := repo.GetRole(ctx, conversationID, actor.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrNotAuthorized
		}
		return nil, "", err
	}
	if conv.Kind != models.KindGroup {
		return nil, "", fmt.Errorf("%w: not a group conversation", common.ErrInvalidContent)
	}
	return conv, role, nil
}

func (s *ConversationService) requireManager(ctx context.Context, actor Actor, conversationID int64) (*models.Conversation, error) {
	conv, role, err := s.groupRole(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if !role.CanManage() {
		return nil, common.ErrNotAuthorized
	}
	return conv, nil
}

// announce inserts conv into each listed user's ordering view under the
// given display name and notifies everyone except the creator.
func (s *ConversationService) announce(ctx context.Context, conv *models.Conversation, creatorID int64, displayNames map[int64]string) {
	payload := realtime.NewConversationPayload{ConversationID: conv.ID, Kind: conv.Kind, Name: conv.Name}
	for uid, display := range displayNames {
		s.view.Touch(uid, ordering.Update{
			ConversationID: conv.ID,
			Summary: &models.ConversationSummary{
				ID:           conv.ID,
				Kind:         conv.Kind,
				Name:         conv.Name,
				DisplayName:  display,
				LastActivity: conv.CreatedAt,
				CreatedAt:    conv.CreatedAt,
			},
		})
		if uid == creatorID {
			continue
		}
		s.publisher.PushToUser(ctx, uid, realtime.EventNewConversation, payload)
	}
}

// uniqueIDs drops non-positive ids, duplicates and skip, keeping order.
func uniqueIDs(ids []int64, skip int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == skip {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
