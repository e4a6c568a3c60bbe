package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPresence map[int64]bool

func (p staticPresence) Status(userID int64) string {
	if p[userID] {
		return models.StatusOnline
	}
	return models.StatusOffline
}

func (f *fixture) conversationService(rooms RoomDropper) *ConversationService {
	return NewConversationService(f.db, f.rm, f.pub, f.view, f.directory, staticPresence{bob: true}, rooms, logging.Nop())
}

func TestCreatePrivate_Dedup(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.store)
	svc := f.conversationService(nil)
	ctx := context.Background()

	// Prime alice's cache so the new conversation is inserted, not reloaded.
	_, err := svc.List(ctx, alice)
	require.NoError(t, err)

	conv, created, err := svc.CreatePrivate(ctx, Actor{UserID: alice}, bob)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.KindPrivate, conv.Kind)

	again, created, err := svc.CreatePrivate(ctx, Actor{UserID: bob}, alice)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	got := f.pub.to(bob, realtime.EventNewConversation)
	require.Len(t, got, 1)
	assert.Equal(t, conv.ID, got[0].Payload.(realtime.NewConversationPayload).ConversationID)
	assert.Empty(t, f.pub.to(alice, realtime.EventNewConversation))

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].DisplayName)
}

func TestCreatePrivate_Invalid(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.store)
	svc := f.conversationService(nil)

	_, _, err := svc.CreatePrivate(context.Background(), Actor{UserID: alice}, alice)
	assert.ErrorIs(t, err, common.ErrInvalidContent)

	_, _, err = svc.CreatePrivate(context.Background(), Actor{UserID: alice}, 404)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.store)
	svc := f.conversationService(nil)
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, Actor{UserID: alice}, "  ", []int64{bob})
	assert.ErrorIs(t, err, common.ErrInvalidContent)

	conv, err := svc.CreateGroup(ctx, Actor{UserID: alice}, " team ", []int64{bob, bob, alice, carol, 0})
	require.NoError(t, err)
	assert.Equal(t, "team", conv.Name)

	roster, err := svc.ListParticipants(ctx, Actor{UserID: carol}, conv.ID)
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, models.RoleOwner, roster[0].Role)
	assert.Equal(t, models.RoleMember, roster[1].Role)
	assert.True(t, roster[1].Online)
	assert.False(t, roster[2].Online)

	assert.Len(t, f.pub.to(bob, realtime.EventNewConversation), 1)
	assert.Len(t, f.pub.to(carol, realtime.EventNewConversation), 1)
	assert.Empty(t, f.pub.to(alice, realtime.EventNewConversation))
}

func TestAddParticipants(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.store)
	conv := f.store.seedConversation(models.KindGroup, "g", alice, alice, bob)
	private := f.store.seedConversation(models.KindPrivate, "", alice, alice, bob)
	svc := f.conversationService(nil)
	ctx := context.Background()

	_, err := svc.AddParticipants(ctx, Actor{UserID: bob}, conv, []int64{carol})
	assert.ErrorIs(t, err, common.ErrNotAuthorized)

	_, err = svc.AddParticipants(ctx, Actor{UserID: carol}, conv, []int64{carol})
	assert.ErrorIs(t, err, common.ErrNotAuthorized)

	_, err = svc.AddParticipants(ctx, Actor{UserID: alice}, private, []int64{carol})
	assert.ErrorIs(t, err, common.ErrInvalidContent)

	added, err := svc.AddParticipants(ctx, Actor{UserID: alice}, conv, []int64{bob, carol})
	require.NoError(t, err)
	assert.Equal(t, []int64{carol}, added)
	assert.Len(t, f.pub.to(carol, realtime.EventNewConversation), 1)
	assert.Empty(t, f.pub.to(bob, realtime.EventNewConversation))
}

func TestRemoveParticipant(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.store)
	conv := f.store.seedConversation(models.KindGroup, "g", alice, alice, bob, carol)
	rooms := session.NewRooms()
	svc := f.conversationService(NewRoomService(f.db, f.rm, rooms, logging.Nop()))
	ctx := context.Background()

	require.NoError(t, f.rm.Conversations(nil).SetRole(ctx, conv, bob, models.RoleAdmin))

	cs := newTestSession("c3", carol)
	rooms.Join(cs, conv)
	list, err := svc.List(ctx, carol)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.RemoveParticipant(ctx, Actor{UserID: bob}, conv, alice), common.ErrNotAuthorized)
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, Actor{UserID: alice}, conv, alice), common.ErrNotAuthorized)
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, Actor{UserID: carol}, conv, bob), common.ErrNotAuthorized)

	require.NoError(t, svc.RemoveParticipant(ctx, Actor{UserID: bob}, conv, carol))
	assert.False(t, cs.InRoom(conv))
	list, err = svc.List(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, list)

	ok, err := f.rm.Conversations(nil).IsParticipant(ctx, conv, carol)
	require.NoError(t, err)
	assert.False(t, ok)

	// Admins may leave on their own.
	require.NoError(t, svc.RemoveParticipant(ctx, Actor{UserID: bob}, conv, bob))
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, Actor{UserID: alice}, conv, bob), common.ErrorNotFound)
}

func TestSetRoleAndGetRole(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.store)
	conv := f.store.seedConversation(models.KindGroup, "g", alice, alice, bob, carol)
	svc := f.conversationService(nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetRole(ctx, Actor{UserID: alice}, conv, RoleUpdate{UserID: bob, Role: models.RoleOwner}), common.ErrInvalidContent)
	assert.ErrorIs(t, svc.SetRole(ctx, Actor{UserID: bob}, conv, RoleUpdate{UserID: carol, Role: models.RoleAdmin}), common.ErrNotAuthorized)

	require.NoError(t, svc.SetRole(ctx, Actor{UserID: alice}, conv, RoleUpdate{UserID: bob, Role: models.RoleAdmin}))
	role, err := svc.GetRole(ctx, Actor{UserID: carol}, conv, bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	assert.ErrorIs(t, svc.SetRole(ctx, Actor{UserID: bob}, conv, RoleUpdate{UserID: alice, Role: models.RoleMember}), common.ErrNotAuthorized)
	assert.ErrorIs(t, svc.SetRole(ctx, Actor{UserID: alice}, conv, RoleUpdate{UserID: 404, Role: models.RoleMember}), common.ErrorNotFound)

	_, err = svc.GetRole(ctx, Actor{UserID: 404}, conv, bob)
	assert.ErrorIs(t, err, common.ErrNotAuthorized)
}
