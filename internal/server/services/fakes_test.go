package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/ordering"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/messages"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/readstates"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- in-memory store ---

type presenceWrite struct {
	UserID int64
	Online bool
}

type memStore struct {
	mu sync.Mutex

	users       map[int64]*models.User
	convs       map[int64]*models.Conversation
	privateKeys map[string]int64
	roles       map[int64]map[int64]models.Role
	msgs        []*models.Message
	reads       map[[2]int64]int64
	readAt      map[[2]int64]time.Time
	presence    []presenceWrite

	nextConvID int64
	nextMsgID  int64
	clock      time.Time

	createMessageErr error
	participantErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[int64]*models.User),
		convs:       make(map[int64]*models.Conversation),
		privateKeys: make(map[string]int64),
		roles:       make(map[int64]map[int64]models.Role),
		reads:       make(map[[2]int64]int64),
		readAt:      make(map[[2]int64]time.Time),
		clock:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addUser(id int64, username string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Username: username}
	s.users[id] = u
	return u
}

func (s *memStore) seedConversation(kind models.ConversationKind, name string, owner int64, members ...int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConvID++
	now := s.tick()
	c := &models.Conversation{ID: s.nextConvID, Kind: kind, Name: name, OwnerID: owner, CreatedAt: now, UpdatedAt: now}
	s.convs[c.ID] = c
	s.roles[c.ID] = make(map[int64]models.Role)
	for _, m := range members {
		role := models.RoleMember
		if kind == models.KindGroup && m == owner {
			role = models.RoleOwner
		}
		s.roles[c.ID][m] = role
	}
	if kind == models.KindPrivate && len(members) == 2 {
		s.privateKeys[conversations.PrivateKey(members[0], members[1])] = c.ID
	}
	return c.ID
}

func (s *memStore) messagesIn(conversationID int64) []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			c := *m
			out = append(out, &c)
		}
	}
	return out
}

func (s *memStore) presenceWrites() []presenceWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]presenceWrite(nil), s.presence...)
}

type memUsers struct{ s *memStore }

func (r memUsers) Upsert(_ context.Context, username, nickname string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			u.Nickname = nickname
			c := *u
			return &c, nil
		}
	}
	id := int64(len(r.s.users) + 1)
	u := &models.User{ID: id, Username: username, Nickname: nickname}
	r.s.users[id] = u
	c := *u
	return &c, nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) SetPresence(_ context.Context, id int64, online bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Online = online
	u.LastSeen = at
	r.s.presence = append(r.s.presence, presenceWrite{UserID: id, Online: online})
	return nil
}

type memConversations struct{ s *memStore }

func (r memConversations) Create(_ context.Context, conv *models.Conversation, privateKey string) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if privateKey != "" {
		if _, ok := r.s.privateKeys[privateKey]; ok {
			return nil, fmt.Errorf("db error: duplicate private_key")
		}
	}
	r.s.nextConvID++
	now := r.s.tick()
	conv.ID = r.s.nextConvID
	conv.CreatedAt = now
	conv.UpdatedAt = now
	c := *conv
	r.s.convs[c.ID] = &c
	r.s.roles[c.ID] = make(map[int64]models.Role)
	if privateKey != "" {
		r.s.privateKeys[privateKey] = c.ID
	}
	return conv, nil
}

func (r memConversations) GetByID(_ context.Context, id int64) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cc := *c
	return &cc, nil
}

func (r memConversations) FindPrivate(ctx context.Context, privateKey string) (*models.Conversation, error) {
	r.s.mu.Lock()
	id, ok := r.s.privateKeys[privateKey]
	r.s.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.GetByID(ctx, id)
}

func (r memConversations) AddParticipant(_ context.Context, conversationID, userID int64, role models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	roster, ok := r.s.roles[conversationID]
	if !ok {
		return fmt.Errorf("db error: no conversation %d", conversationID)
	}
	if _, ok := r.s.users[userID]; !ok {
		return fmt.Errorf("db error: no user %d", userID)
	}
	if _, ok := roster[userID]; !ok {
		roster[userID] = role
	}
	return nil
}

func (r memConversations) RemoveParticipant(_ context.Context, conversationID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[conversationID][userID]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.roles[conversationID], userID)
	return nil
}

func (r memConversations) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.participantErr != nil {
		return false, r.s.participantErr
	}
	_, ok := r.s.roles[conversationID][userID]
	return ok, nil
}

func (r memConversations) ListParticipantIDs(_ context.Context, conversationID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.roles[conversationID]))
	for id := range r.s.roles[conversationID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memConversations) ListParticipants(ctx context.Context, conversationID int64) ([]*models.Participant, error) {
	ids, _ := r.ListParticipantIDs(ctx, conversationID)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Participant{User: *r.s.users[id], Role: r.s.roles[conversationID][id]})
	}
	return out, nil
}

func (r memConversations) GetRole(_ context.Context, conversationID, userID int64) (models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[conversationID][userID]
	if !ok {
		return "", common.ErrorNotFound
	}
	return role, nil
}

func (r memConversations) SetRole(_ context.Context, conversationID, userID int64, role models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.roles[conversationID][userID] = role
	return nil
}

func (r memConversations) NextSequence(_ context.Context, conversationID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[conversationID]
	if !ok {
		return 0, common.ErrorNotFound
	}
	c.LastSequence++
	c.UpdatedAt = r.s.tick()
	return c.LastSequence, nil
}

func (r memConversations) ListForUser(_ context.Context, userID int64) ([]*models.ConversationSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ConversationSummary
	for id, roster := range r.s.roles {
		if _, ok := roster[userID]; !ok {
			continue
		}
		c := r.s.convs[id]
		sum := &models.ConversationSummary{ID: c.ID, Kind: c.Kind, Name: c.Name, DisplayName: c.Name, CreatedAt: c.CreatedAt}
		if c.Kind == models.KindPrivate {
			for peer := range roster {
				if peer != userID {
					sum.DisplayName = r.s.users[peer].DisplayName()
				}
			}
		}
		for i := len(r.s.msgs) - 1; i >= 0; i-- {
			if m := r.s.msgs[i]; m.ConversationID == c.ID && !m.Deleted {
				sum.Preview = models.NewPreview(m)
				break
			}
		}
		sum.LastActivity = sum.Activity()
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type memMessages struct{ s *memStore }

func (r memMessages) Create(_ context.Context, msg *models.Message) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createMessageErr != nil {
		return nil, r.s.createMessageErr
	}
	r.s.nextMsgID++
	msg.ID = r.s.nextMsgID
	msg.CreatedAt = r.s.tick()
	c := *msg
	r.s.msgs = append(r.s.msgs, &c)
	return msg, nil
}

func (r memMessages) GetByID(_ context.Context, id int64) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.msgs {
		if m.ID == id {
			c := *m
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memMessages) ListSince(_ context.Context, conversationID, sinceSequence int64, limit int) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, m := range r.s.msgs {
		if m.ConversationID == conversationID && m.Sequence > sinceSequence {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memMessages) SoftDelete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.msgs {
		if m.ID == id {
			m.Deleted = true
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r memMessages) CountUnread(_ context.Context, conversationID, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	last := r.s.reads[[2]int64{conversationID, userID}]
	var n int64
	for _, m := range r.s.msgs {
		if m.ConversationID == conversationID && m.SenderID != userID && !m.Deleted && m.Sequence > last {
			n++
		}
	}
	return n, nil
}

type memReadStates struct{ s *memStore }

func (r memReadStates) Advance(_ context.Context, conversationID, userID, sequence int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := [2]int64{conversationID, userID}
	if sequence > r.s.reads[k] {
		r.s.reads[k] = sequence
		r.s.readAt[k] = r.s.tick()
	}
	return r.s.reads[k], nil
}

func (r memReadStates) ListForConversation(_ context.Context, conversationID int64) ([]*models.ParticipantRead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*models.ParticipantRead
	for uid := range r.s.roles[conversationID] {
		k := [2]int64{conversationID, uid}
		p := &models.ParticipantRead{
			ReadState: models.ReadState{ConversationID: conversationID, UserID: uid, LastReadSequence: r.s.reads[k]},
			UpdatedAt: r.s.readAt[k],
		}
		if u, ok := r.s.users[uid]; ok {
			p.Username, p.Nickname = u.Username, u.Nickname
		}
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

type memRepoManager struct{ s *memStore }

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *memRepoManager) Users(dbx.DBTX) users.Repository                 { return memUsers{m.s} }
func (m *memRepoManager) Conversations(dbx.DBTX) conversations.Repository { return memConversations{m.s} }
func (m *memRepoManager) Messages(dbx.DBTX) messages.Repository           { return memMessages{m.s} }
func (m *memRepoManager) ReadStates(dbx.DBTX) readstates.Repository       { return memReadStates{m.s} }

// --- recording publisher ---

type push struct {
	UserID  int64
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu         sync.Mutex
	pushes     []push
	broadcasts []push
}

func (p *recordingPublisher) PushToUser(_ context.Context, userID int64, event string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{UserID: userID, Event: event, Payload: payload})
	return 1
}

func (p *recordingPublisher) Broadcast(_ context.Context, event string, payload any, exceptUserID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, push{UserID: exceptUserID, Event: event, Payload: payload})
	return 1
}

func (p *recordingPublisher) to(userID int64, event string) []push {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []push
	for _, x := range p.pushes {
		if x.UserID == userID && x.Event == event {
			out = append(out, x)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes) + len(p.broadcasts)
}

// --- helpers ---

// newTxDB returns a database that can only begin and commit transactions;
// the in-memory repositories ignore the DBTX they are given.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	store     *memStore
	rm        *memRepoManager
	pub       *recordingPublisher
	view      *ordering.View
	directory *UserDirectory
	db        *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	rm := &memRepoManager{s: st}
	db := newTxDB(t)
	return &fixture{
		store:     st,
		rm:        rm,
		pub:       &recordingPublisher{},
		view:      ordering.NewView(rm.Conversations(nil).ListForUser),
		directory: NewUserDirectory(db, rm, nil, time.Minute, logging.Nop()),
		db:        db,
	}
}

func (f *fixture) messageService() *MessageService {
	return NewMessageService(f.db, f.rm, f.pub, f.view, f.directory, 5*time.Second, 2*time.Minute, logging.Nop())
}
