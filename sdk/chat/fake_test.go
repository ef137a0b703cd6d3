package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mbeoliero/hearth/sdk"
)

var errBackend = errors.New("backend unavailable")

// fakeBackend is an in-memory record store shared by several users. Writes
// are pushed to every registered channel manager after the lock is released.
type fakeBackend struct {
	mu          sync.Mutex
	now         int64
	frozen      bool
	nextId      int
	profiles    map[string]*sdk.Profile
	convs       map[string]*sdk.Conversation
	messages    []*sdk.Message
	channels    []*fakeChannels
	calls       map[string]int
	errs        map[string]error
	profileErrs map[string]error
	afterList   func(call int)
	beforeHist  func()
	afterHist   func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		now:         1_700_000_000_000,
		profiles:    make(map[string]*sdk.Profile),
		convs:       make(map[string]*sdk.Conversation),
		calls:       make(map[string]int),
		errs:        make(map[string]error),
		profileErrs: make(map[string]error),
	}
}

func (b *fakeBackend) addProfile(id, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[id] = &sdk.Profile{Id: id, FullName: name, Role: sdk.RoleHomeowner}
}

// store returns the record store of user me
func (b *fakeBackend) store(me string) *fakeStore {
	return &fakeStore{b: b, me: me}
}

// channelsFor registers a channel manager that sees what user me may see
func (b *fakeBackend) channelsFor(me string) *fakeChannels {
	c := &fakeChannels{b: b, me: me}
	b.mu.Lock()
	b.channels = append(b.channels, c)
	b.mu.Unlock()
	return c
}

func (b *fakeBackend) setErr(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, method)
		return
	}
	b.errs[method] = err
}

func (b *fakeBackend) count(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *fakeBackend) conversation(id string) sdk.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.convs[id]
}

// enter records a call and returns the injected error, with b.mu held
func (b *fakeBackend) enter(method string) error {
	b.mu.Lock()
	b.calls[method]++
	return b.errs[method]
}

func (b *fakeBackend) tick() int64 {
	if !b.frozen {
		b.now++
	}
	return b.now
}

func (b *fakeBackend) publish(topic, event string, record any, conv sdk.Conversation) {
	b.mu.Lock()
	channels := append([]*fakeChannels(nil), b.channels...)
	b.mu.Unlock()
	for _, c := range channels {
		c.emit(topic, event, record, conv)
	}
}

func (b *fakeBackend) sortedLocked(convId string) []*sdk.Message {
	var out []*sdk.Message
	for _, m := range b.messages {
		if m.ConversationId == convId {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return messageLess(out[i], out[j]) })
	return out
}

type fakeStore struct {
	b  *fakeBackend
	me string
}

func (s *fakeStore) ListConversations(ctx context.Context) ([]*sdk.Conversation, error) {
	b := s.b
	if err := b.enter("ListConversations"); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	var out []*sdk.Conversation
	for _, c := range b.convs {
		if c.Participant1Id == s.me || c.Participant2Id == s.me {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].Id > out[j].Id
	})
	call := b.calls["ListConversations"]
	hook := b.afterList
	b.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return out, nil
}

func (s *fakeStore) GetProfile(ctx context.Context, userId string) (*sdk.Profile, error) {
	b := s.b
	err := b.enter("GetProfile")
	defer b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := b.profileErrs[userId]; err != nil {
		return nil, err
	}
	p, ok := b.profiles[userId]
	if !ok {
		return nil, sdk.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) LatestMessage(ctx context.Context, conversationId string) (*sdk.Message, error) {
	b := s.b
	err := b.enter("LatestMessage")
	defer b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	msgs := b.sortedLocked(conversationId)
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[len(msgs)-1], nil
}

func (s *fakeStore) CountUnread(ctx context.Context, conversationId string) (int64, error) {
	b := s.b
	err := b.enter("CountUnread")
	defer b.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, m := range b.messages {
		if m.ConversationId == conversationId && !m.Read && m.SenderId != s.me {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ListMessages(ctx context.Context, conversationId string) ([]*sdk.Message, error) {
	b := s.b
	b.mu.Lock()
	hook := b.beforeHist
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	if err := b.enter("ListMessages"); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	out := b.sortedLocked(conversationId)
	after := b.afterHist
	b.mu.Unlock()

	if after != nil {
		after()
	}
	return out, nil
}

func (s *fakeStore) MarkRead(ctx context.Context, conversationId string) ([]string, error) {
	b := s.b
	err := b.enter("MarkRead")
	defer b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range b.messages {
		if m.ConversationId == conversationId && !m.Read && m.SenderId != s.me {
			m.Read = true
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

func (s *fakeStore) InsertMessage(ctx context.Context, conversationId, content string) (*sdk.Message, error) {
	b := s.b
	if err := b.enter("InsertMessage"); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	conv, ok := b.convs[conversationId]
	if !ok {
		b.mu.Unlock()
		return nil, sdk.ErrConvNotFound
	}
	b.nextId++
	m := &sdk.Message{
		Id:             fmt.Sprintf("%d", 100000+b.nextId),
		ConversationId: conversationId,
		SenderId:       s.me,
		Content:        content,
		CreatedAt:      b.tick(),
	}
	b.messages = append(b.messages, m)
	out, snapshot := *m, *conv
	b.mu.Unlock()

	b.publish(sdk.TopicMessages, sdk.EventInsert, out, snapshot)
	return &out, nil
}

func (s *fakeStore) TouchConversation(ctx context.Context, conversationId string) (*sdk.Conversation, error) {
	b := s.b
	if err := b.enter("TouchConversation"); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	conv, ok := b.convs[conversationId]
	if !ok {
		b.mu.Unlock()
		return nil, sdk.ErrConvNotFound
	}
	if now := b.tick(); now > conv.UpdatedAt {
		conv.UpdatedAt = now
	}
	out := *conv
	b.mu.Unlock()

	b.publish(sdk.TopicConversations, sdk.EventUpdate, out, out)
	return &out, nil
}

func (s *fakeStore) FindConversation(ctx context.Context, otherUserId string) (*sdk.Conversation, error) {
	b := s.b
	err := b.enter("FindConversation")
	defer b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c := b.findLocked(s.me, otherUserId); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) CreateConversation(ctx context.Context, otherUserId string) (*sdk.Conversation, error) {
	b := s.b
	if err := b.enter("CreateConversation"); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if s.me == otherUserId {
		b.mu.Unlock()
		return nil, sdk.ErrSelfConversation
	}
	if c := b.findLocked(s.me, otherUserId); c != nil {
		cp := *c
		b.mu.Unlock()
		return &cp, nil
	}
	b.nextId++
	now := b.tick()
	conv := &sdk.Conversation{
		Id:             fmt.Sprintf("%d", 100000+b.nextId),
		Participant1Id: s.me,
		Participant2Id: otherUserId,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.convs[conv.Id] = conv
	out := *conv
	b.mu.Unlock()

	b.publish(sdk.TopicConversations, sdk.EventInsert, out, out)
	return &out, nil
}

func (b *fakeBackend) findLocked(x, y string) *sdk.Conversation {
	for _, c := range b.convs {
		if (c.Participant1Id == x && c.Participant2Id == y) || (c.Participant1Id == y && c.Participant2Id == x) {
			return c
		}
	}
	return nil
}

// fakeChannels delivers backend writes to matching open subscriptions. While
// down, writes are dropped the way a broken connection loses pushes.
type fakeChannels struct {
	b  *fakeBackend
	me string

	mu       sync.Mutex
	subs     []*fakeSub
	nextId   int
	err      error
	history  []string
	down     bool
	deferAck bool // leave new channels connecting until setStatus
}

type fakeSub struct {
	id       string
	spec     sdk.ChannelSpec
	onEvent  sdk.EventHandler
	onStatus sdk.StatusHandler
	closed   bool
}

func (c *fakeChannels) Subscribe(ctx context.Context, spec sdk.ChannelSpec, onEvent sdk.EventHandler, onStatus sdk.StatusHandler) (*sdk.Subscription, error) {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextId++
	sub := &fakeSub{id: fmt.Sprintf("ch-%d", c.nextId), spec: spec, onEvent: onEvent, onStatus: onStatus}
	c.subs = append(c.subs, sub)
	c.history = append(c.history, fmt.Sprintf("open %s %s", sub.id, spec.Topic))
	deferAck := c.deferAck
	if deferAck {
		c.down = true
	}
	c.mu.Unlock()

	if onStatus != nil {
		onStatus(sdk.StatusConnecting, nil)
		if !deferAck {
			onStatus(sdk.StatusSubscribed, nil)
		}
	}
	return sdk.NewSubscription(sub.id, func() {
		c.mu.Lock()
		sub.closed = true
		c.history = append(c.history, fmt.Sprintf("close %s %s", sub.id, spec.Topic))
		c.mu.Unlock()
	}), nil
}

func (c *fakeChannels) open(topic string) []*fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeSub
	for _, s := range c.subs {
		if !s.closed && s.spec.Topic == topic {
			out = append(out, s)
		}
	}
	return out
}

func (c *fakeChannels) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}

// setStatus reports status on every open subscription. Any status other
// than subscribed takes the channels down.
func (c *fakeChannels) setStatus(status sdk.ChannelStatus) {
	c.mu.Lock()
	c.down = status != sdk.StatusSubscribed
	var subs []*fakeSub
	for _, s := range c.subs {
		if !s.closed {
			subs = append(subs, s)
		}
	}
	c.mu.Unlock()
	for _, s := range subs {
		if s.onStatus != nil {
			s.onStatus(status, nil)
		}
	}
}

func (c *fakeChannels) emit(topic, event string, record any, conv sdk.Conversation) {
	participant := conv.Participant1Id == c.me || conv.Participant2Id == c.me
	if !participant {
		return
	}
	cols := recordColumns(record)

	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return
	}
	var targets []*fakeSub
	for _, s := range c.subs {
		if !s.closed && s.spec.Topic == topic && matchesEvent(s.spec.Events, event) && matchesFilter(s.spec.Filter, cols) {
			targets = append(targets, s)
		}
	}
	c.mu.Unlock()

	ev := newChangeEvent(topic, event, record)
	for _, s := range targets {
		s.onEvent(ev)
	}
}

// deliver pushes a raw event to every open subscription of topic
func (c *fakeChannels) deliver(topic, event string, record any) {
	ev := newChangeEvent(topic, event, record)
	for _, s := range c.open(topic) {
		s.onEvent(ev)
	}
}

func newChangeEvent(topic, event string, record any) *sdk.ChangeEvent {
	data, _ := json.Marshal(record)
	return &sdk.ChangeEvent{Topic: topic, Event: event, Record: data}
}

func recordColumns(record any) map[string]string {
	switch r := record.(type) {
	case sdk.Message:
		return map[string]string{sdk.ColumnConversationId: r.ConversationId, sdk.ColumnSenderId: r.SenderId}
	case sdk.Conversation:
		return map[string]string{sdk.ColumnParticipant1: r.Participant1Id, sdk.ColumnParticipant2: r.Participant2Id}
	}
	return nil
}

func matchesEvent(events []string, event string) bool {
	for _, e := range events {
		if e == sdk.EventAny || e == event {
			return true
		}
	}
	return false
}

func matchesFilter(filter []sdk.Filter, cols map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if cols[f.Column] == f.Value {
			return true
		}
	}
	return false
}
