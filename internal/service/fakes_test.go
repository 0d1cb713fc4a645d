package service

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/model"
	"Tandem/internal/pkg/mongo"
	"Tandem/internal/repository"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var errDuplicate = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

var errDuplicateSeq = driver.WriteException{WriteErrors: driver.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeUserRepo

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uint64]*model.User
	nextID uint64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint64]*model.User)}
}

func (r *fakeUserRepo) add(name string, lastSeen time.Time) uint64 {
	u := &model.User{TokenIdentifier: "token-" + name, Name: name, LastSeen: lastSeen}
	_ = r.CreateUser(context.Background(), u)
	return u.ID
}

func (r *fakeUserRepo) GetUserById(_ context.Context, id uint64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByIds(_ context.Context, ids []uint64) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *fakeUserRepo) GetUserByToken(_ context.Context, token string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TokenIdentifier == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TokenIdentifier == user.TokenIdentifier {
			return errDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.UpdatedAt = time.Now()
	u.Name, u.Email, u.Image, u.LastSeen, u.UpdatedAt = user.Name, user.Email, user.Image, user.LastSeen, user.UpdatedAt
	return nil
}

func (r *fakeUserRepo) UpdateLastSeen(_ context.Context, id uint64, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastSeen = lastSeen
	}
	return nil
}

func (r *fakeUserRepo) SearchByName(_ context.Context, excludeID uint64, query string, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.User, 0)
	q := strings.ToLower(query)
	for _, u := range r.users {
		if u.ID == excludeID || !strings.Contains(strings.ToLower(u.Name), q) {
			continue
		}
		cp := *u
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// fakeConvRepo

type memberKey struct {
	convID uint64
	userID uint64
}

type fakeConvRepo struct {
	mu      sync.Mutex
	convs   map[uint64]*model.Conversation
	members map[memberKey]*model.ConversationMember
	nextID  uint64

	// beforeCreate 模拟并发创建者先一步写入
	beforeCreate func()
	// commitErr persist 成功后提交失败
	commitErr error
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		convs:   make(map[uint64]*model.Conversation),
		members: make(map[memberKey]*model.ConversationMember),
	}
}

func (r *fakeConvRepo) member(convID, userID uint64) *model.ConversationMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberKey{convID, userID}]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

func (r *fakeConvRepo) CreateConversation(_ context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv.PeerKey != nil {
		for _, c := range r.convs {
			if c.PeerKey != nil && *c.PeerKey == *conv.PeerKey {
				return errDuplicate
			}
		}
	}
	r.nextID++
	conv.ID = r.nextID
	cp := *conv
	r.convs[conv.ID] = &cp
	for _, m := range members {
		r.nextID++
		m.ID = r.nextID
		m.ConversationID = conv.ID
		mcp := *m
		r.members[memberKey{conv.ID, m.UserID}] = &mcp
	}
	return nil
}

func (r *fakeConvRepo) GetConversation(_ context.Context, convID uint64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[convID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConvRepo) GetConversations(_ context.Context, convIDs []uint64) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.Conversation, 0, len(convIDs))
	for _, id := range convIDs {
		if c, ok := r.convs[id]; ok {
			cp := *c
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *fakeConvRepo) GetConversationByPeerKey(_ context.Context, peerKey string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.PeerKey != nil && *c.PeerKey == peerKey {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConvRepo) GetMember(_ context.Context, convID, userID uint64) (*model.ConversationMember, error) {
	return r.member(convID, userID), nil
}

func (r *fakeConvRepo) GetMemberIDs(_ context.Context, convID uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0)
	for k := range r.members {
		if k.convID == convID {
			ids = append(ids, k.userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeConvRepo) IsMember(_ context.Context, convID uint64, userID uint64) (bool, error) {
	return r.member(convID, userID) != nil, nil
}

func (r *fakeConvRepo) AppendMessage(_ context.Context, convID, senderID uint64, now time.Time, persist func(seq uint64) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[convID]
	if !ok {
		return gorm.ErrRecordNotFound
	}

	// persist 失败时回滚
	convSnapshot := *conv
	memberSnapshot := make(map[memberKey]model.ConversationMember)
	for k, m := range r.members {
		if k.convID == convID {
			memberSnapshot[k] = *m
		}
	}

	conv.MaxMsgSeq++
	conv.UpdatedAt = now
	for k, m := range r.members {
		if k.convID != convID {
			continue
		}
		m.LastActivityAt = now
		m.UpdatedAt = now
		if k.userID != senderID {
			m.HasUnread = true
			m.UnreadCount++
		}
	}

	err := persist(conv.MaxMsgSeq)
	if err == nil && r.commitErr != nil {
		err = r.commitErr
	}
	if err != nil {
		*conv = convSnapshot
		for k, m := range memberSnapshot {
			mc := m
			r.members[k] = &mc
		}
		return err
	}
	return nil
}

func (r *fakeConvRepo) ResetUnread(_ context.Context, convID, userID uint64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberKey{convID, userID}]
	if !ok || (!m.HasUnread && m.UnreadCount == 0) {
		return false, nil
	}
	m.HasUnread = false
	m.UnreadCount = 0
	m.UpdatedAt = now
	return true, nil
}

func (r *fakeConvRepo) ListMembers(_ context.Context, userID uint64, after *repository.MemberCursor, limit int) ([]*model.ConversationMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.ConversationMember, 0)
	for k, m := range r.members {
		if k.userID != userID {
			continue
		}
		if after != nil {
			at := m.LastActivityAt
			if at.After(after.LastActivityAt) ||
				(at.Equal(after.LastActivityAt) && m.ConversationID >= after.ConversationID) {
				continue
			}
		}
		cp := *m
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].LastActivityAt.Equal(res[j].LastActivityAt) {
			return res[i].LastActivityAt.After(res[j].LastActivityAt)
		}
		return res[i].ConversationID > res[j].ConversationID
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *fakeConvRepo) RepairUnreadFlags(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.members {
		if (m.UnreadCount > 0) != m.HasUnread {
			m.HasUnread = m.UnreadCount > 0
			n++
		}
	}
	return n, nil
}

// fakeMessageRepo

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[primitive.ObjectID]*mongo.Message
	saveErr  error

	// beforeUpdate 模拟并发回应
	beforeUpdate func(id primitive.ObjectID)
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[primitive.ObjectID]*mongo.Message)}
}

func cloneMessage(m *mongo.Message) *mongo.Message {
	cp := *m
	cp.Reactions = make([]mongo.Reaction, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		cp.Reactions = append(cp.Reactions, mongo.Reaction{Emoji: r.Emoji, UserIDs: append([]uint64(nil), r.UserIDs...)})
	}
	return &cp
}

func (r *fakeMessageRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, m := range r.messages {
		if m.ConversationID == msg.ConversationID && m.Seq == msg.Seq {
			return errDuplicateSeq
		}
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	r.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *fakeMessageRepo) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

func (r *fakeMessageRepo) DeleteBySeq(_ context.Context, convID uint64, seq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.messages {
		if m.ConversationID == convID && m.Seq == seq {
			delete(r.messages, id)
		}
	}
	return nil
}

func (r *fakeMessageRepo) sorted(convID uint64) []*mongo.Message {
	res := make([]*mongo.Message, 0)
	for _, m := range r.messages {
		if m.ConversationID == convID {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq > res[j].Seq })
	return res
}

func (r *fakeMessageRepo) GetHistory(_ context.Context, convID uint64, beforeSeq uint64, pageSize int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*mongo.Message, 0)
	for _, m := range r.sorted(convID) {
		if beforeSeq > 0 && m.Seq >= beforeSeq {
			continue
		}
		res = append(res, cloneMessage(m))
		if len(res) == pageSize {
			break
		}
	}
	return res, nil
}

func (r *fakeMessageRepo) GetLatest(_ context.Context, convID uint64) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.sorted(convID)
	if len(msgs) == 0 {
		return nil, nil
	}
	return cloneMessage(msgs[0]), nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*mongo.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[oid]
	if !ok {
		return nil, nil
	}
	return cloneMessage(m), nil
}

func (r *fakeMessageRepo) MarkDeleted(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return errors.New("not found")
	}
	m.IsDeleted = true
	m.Content = ""
	m.Version++
	return nil
}

func (r *fakeMessageRepo) UpdateReactions(_ context.Context, id primitive.ObjectID, reactions []mongo.Reaction, version int64) (bool, error) {
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.Version != version || m.IsDeleted {
		return false, nil
	}
	m.Reactions = reactions
	m.Version++
	return true, nil
}

// fakeTypingRepo

type fakeTypingRepo struct {
	mu      sync.Mutex
	markers map[uint64]map[uint64]int64
}

func newFakeTypingRepo() *fakeTypingRepo {
	return &fakeTypingRepo{markers: make(map[uint64]map[uint64]int64)}
}

func (r *fakeTypingRepo) Set(_ context.Context, convID, userID uint64, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markers[convID] == nil {
		r.markers[convID] = make(map[uint64]int64)
	}
	r.markers[convID][userID] = expiresAt.UnixMilli()
	return nil
}

func (r *fakeTypingRepo) Clear(_ context.Context, convID, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markers[convID][userID]; ok {
		r.markers[convID][userID] = 0
	}
	return nil
}

func (r *fakeTypingRepo) GetActive(_ context.Context, convID uint64, now time.Time) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]uint64, 0)
	for uid, exp := range r.markers[convID] {
		if exp > now.UnixMilli() {
			res = append(res, uid)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

// fakePublisher

type publishedEvent struct {
	userIDs []uint64
	event   dto.EventDTO
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(_ context.Context, userIDs []uint64, evt *dto.EventDTO) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userIDs: append([]uint64(nil), userIDs...), event: *evt})
	return nil
}

func (p *fakePublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]publishedEvent, 0)
	for _, e := range p.events {
		if e.event.Type == eventType {
			res = append(res, e)
		}
	}
	return res
}

// testEnv 组装全部服务

type testEnv struct {
	clock     *fakeClock
	users     *fakeUserRepo
	convs     *fakeConvRepo
	messages  *fakeMessageRepo
	typing    *fakeTypingRepo
	publisher *fakePublisher

	userSvc    UserService
	imSvc      IMService
	messageSvc MessageService
	typingSvc  TypingService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		clock:     newFakeClock(),
		users:     newFakeUserRepo(),
		convs:     newFakeConvRepo(),
		messages:  newFakeMessageRepo(),
		typing:    newFakeTypingRepo(),
		publisher: &fakePublisher{},
	}
	opts := Options{
		OnlineThreshold:  15 * time.Second,
		TypingTTL:        3 * time.Second,
		MaxMessageLength: 4000,
		DefaultPageSize:  20,
		MaxPageSize:      100,
		Now:              env.clock.Now,
	}
	env.userSvc = NewUserService(env.users, nil, opts)
	env.imSvc = NewIMService(env.convs, env.users, env.messages, env.publisher, opts)
	env.messageSvc = NewMessageService(env.convs, env.messages, env.typing, env.publisher, opts)
	env.typingSvc = NewTypingService(env.typing, env.convs, env.users, env.publisher, opts)
	return env
}

func (e *testEnv) addUser(name string) uint64 {
	return e.users.add(name, e.clock.Now())
}
