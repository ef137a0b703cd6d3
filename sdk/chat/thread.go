package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/kit/log"
)

// ThreadState is the lifecycle state of a Thread
type ThreadState int

const (
	ThreadUnopened ThreadState = iota
	ThreadLoading
	ThreadReady
	ThreadSendFailed
	ThreadLoadFailed
	ThreadClosed
)

func (s ThreadState) String() string {
	switch s {
	case ThreadUnopened:
		return "unopened"
	case ThreadLoading:
		return "loading"
	case ThreadReady:
		return "ready"
	case ThreadSendFailed:
		return "send_failed"
	case ThreadLoadFailed:
		return "load_failed"
	case ThreadClosed:
		return "closed"
	}
	return "unknown"
}

// ThreadSnapshot is a consistent copy of the thread state. Sending counts
// sends still in flight.
type ThreadSnapshot struct {
	ConversationId string
	State          ThreadState
	Messages       []*sdk.Message
	Draft          string
	Err            error
	Sending        int
	Connected      bool
}

// Thread is the live, ordered history of one conversation
type Thread struct {
	store          RecordStore
	channels       ChannelManager
	session        *Session
	opts           options
	conversationId string

	mu        sync.Mutex
	state     ThreadState
	messages  []*sdk.Message
	ids       map[string]struct{}
	read      map[string]struct{} // ids the store reported as marked read
	draft     string
	err       error
	sending   int
	connected bool
	syncs     uint64 // transitions into StatusSubscribed
	sub       *sdk.Subscription
	onChange  func(ThreadSnapshot)
}

// NewThread creates an unopened thread
func NewThread(store RecordStore, channels ChannelManager, session *Session, conversationId string, opts ...Option) (*Thread, error) {
	if err := session.validate(); err != nil {
		return nil, err
	}
	if conversationId == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	return &Thread{
		store:          store,
		channels:       channels,
		session:        session,
		opts:           newOptions(opts),
		conversationId: conversationId,
		ids:            make(map[string]struct{}),
		read:           make(map[string]struct{}),
	}, nil
}

// OpenThread creates a thread and opens it
func OpenThread(ctx context.Context, store RecordStore, channels ChannelManager, session *Session, conversationId string, opts ...Option) (*Thread, error) {
	t, err := NewThread(store, channels, session, conversationId, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Open(ctx); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// ConversationId returns the id of the conversation shown
func (t *Thread) ConversationId() string {
	return t.conversationId
}

// OnChange registers fn to run after every state change
func (t *Thread) OnChange(fn func(ThreadSnapshot)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Open subscribes to new messages, then loads the history and marks it read.
// Messages delivered while the history loads are merged, not lost. When the
// channel only became subscribed after the history request started, the
// history is fetched once more. Calling Open again after a failed load
// retries the load.
func (t *Thread) Open(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case ThreadClosed:
		t.mu.Unlock()
		return ErrClosed
	case ThreadUnopened, ThreadLoadFailed:
	default:
		t.mu.Unlock()
		return nil
	}
	t.state = ThreadLoading
	t.err = nil
	needSub := t.sub == nil
	t.mu.Unlock()
	t.notify()

	if needSub {
		sub, err := t.channels.Subscribe(ctx, sdk.ChannelSpec{
			Topic:  sdk.TopicMessages,
			Events: []string{sdk.EventInsert},
			Filter: []sdk.Filter{{Column: sdk.ColumnConversationId, Value: t.conversationId}},
		}, t.handleInsert, t.handleStatus)
		if err != nil {
			return t.failLoad(fmt.Errorf("subscribe messages: %w", err))
		}

		t.mu.Lock()
		if t.state == ThreadClosed {
			t.mu.Unlock()
			sub.Close()
			return ErrClosed
		}
		t.sub = sub
		t.mu.Unlock()
	}

	t.mu.Lock()
	syncs := t.syncs
	t.mu.Unlock()

	lctx, cancel := t.opts.bound(ctx)
	history, err := t.store.ListMessages(lctx, t.conversationId)
	cancel()
	if err != nil {
		return t.failLoad(fmt.Errorf("list messages: %w", err))
	}

	t.mu.Lock()
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return ErrClosed
	}
	for _, m := range history {
		t.insertLocked(m)
	}
	t.state = ThreadReady
	stale := t.syncs != syncs
	t.mu.Unlock()
	t.notify()

	if stale {
		t.resync(ctx)
	}
	t.markRead(ctx)
	return nil
}

// resync merges the stored history into a loaded thread. It covers messages
// committed while the channel was not subscribed.
func (t *Thread) resync(ctx context.Context) {
	t.mu.Lock()
	if t.state != ThreadReady && t.state != ThreadSendFailed {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	lctx, cancel := t.opts.bound(ctx)
	history, err := t.store.ListMessages(lctx, t.conversationId)
	cancel()
	if err != nil {
		log.CtxWarn(ctx, "resync messages failed: conversation_id=%s, error=%v", t.conversationId, err)
		return
	}

	me := t.session.UserId
	var added, unread bool
	t.mu.Lock()
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return
	}
	for _, m := range history {
		if t.insertLocked(m) {
			added = true
			unread = unread || (!m.Read && m.SenderId != me)
		}
	}
	t.mu.Unlock()

	if added {
		t.notify()
	}
	if unread {
		t.markRead(ctx)
	}
}

func (t *Thread) failLoad(err error) error {
	t.mu.Lock()
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.state = ThreadLoadFailed
	t.err = err
	t.mu.Unlock()
	t.notify()
	return err
}

// markRead marks the other participant's messages read. Only the ids the
// store reports as changed are flagged locally. Failures are only logged.
func (t *Thread) markRead(ctx context.Context) {
	mctx, cancel := t.opts.bound(ctx)
	defer cancel()
	ids, err := t.store.MarkRead(mctx, t.conversationId)
	if err != nil {
		log.CtxWarn(ctx, "mark read failed: conversation_id=%s, error=%v", t.conversationId, err)
		return
	}
	if len(ids) == 0 {
		return
	}

	t.mu.Lock()
	for _, id := range ids {
		t.read[id] = struct{}{}
	}
	for _, m := range t.messages {
		if _, ok := t.read[m.Id]; ok {
			m.Read = true
		}
	}
	t.mu.Unlock()
	t.notify()
}

// Send trims text and sends it. On failure text stays as the draft and the
// thread moves to ThreadSendFailed until the next successful send.
func (t *Thread) Send(ctx context.Context, text string) (*sdk.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	t.mu.Lock()
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.draft = text
	t.sending++
	t.mu.Unlock()
	t.notify()

	sctx, cancel := t.opts.bound(ctx)
	msg, err := t.store.InsertMessage(sctx, t.conversationId, content)
	cancel()

	t.mu.Lock()
	t.sending--
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return msg, err
	}
	if err != nil {
		err = fmt.Errorf("send message: %w", err)
		t.state = ThreadSendFailed
		t.err = err
		t.mu.Unlock()
		t.notify()
		log.CtxWarn(ctx, "send message failed: conversation_id=%s, error=%v", t.conversationId, err)
		return nil, err
	}
	t.insertLocked(msg)
	if t.state == ThreadSendFailed {
		t.state = ThreadReady
		t.err = nil
	}
	if t.draft == text {
		t.draft = ""
	}
	t.mu.Unlock()
	t.notify()

	tctx, cancel := t.opts.bound(ctx)
	defer cancel()
	if _, err := t.store.TouchConversation(tctx, t.conversationId); err != nil {
		log.CtxWarn(ctx, "touch conversation failed: conversation_id=%s, error=%v", t.conversationId, err)
	}
	return msg, nil
}

// Retry sends the preserved draft again
func (t *Thread) Retry(ctx context.Context) (*sdk.Message, error) {
	return t.Send(ctx, t.Draft())
}

// SetDraft replaces the unsent text
func (t *Thread) SetDraft(text string) {
	t.mu.Lock()
	t.draft = text
	t.mu.Unlock()
}

// Draft returns the unsent text
func (t *Thread) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

// Close releases the subscription. Results arriving afterwards are ignored.
func (t *Thread) Close() {
	t.mu.Lock()
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return
	}
	t.state = ThreadClosed
	t.connected = false
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()

	sub.Close()
	t.notify()
}

func (t *Thread) handleInsert(ev *sdk.ChangeEvent) {
	msg, err := ev.Message()
	if err != nil {
		log.Warn("decode message event failed: conversation_id=%s, error=%v", t.conversationId, err)
		return
	}
	if msg.ConversationId != t.conversationId {
		return
	}

	t.mu.Lock()
	if t.state == ThreadClosed || t.state == ThreadUnopened {
		t.mu.Unlock()
		return
	}
	inserted := t.insertLocked(msg)
	_, marked := t.read[msg.Id]
	incoming := inserted && !msg.Read && !marked && msg.SenderId != t.session.UserId && t.state != ThreadLoading
	t.mu.Unlock()

	if !inserted {
		return
	}
	t.notify()
	if incoming {
		go t.markRead(context.Background())
	}
}

// handleStatus tracks the channel. Becoming subscribed again after a gap
// re-reads the history, because pushes sent during the gap were lost.
func (t *Thread) handleStatus(status sdk.ChannelStatus, err error) {
	if err != nil {
		log.Warn("thread channel status: conversation_id=%s, status=%s, error=%v", t.conversationId, status, err)
	}
	t.mu.Lock()
	if t.state == ThreadClosed {
		t.mu.Unlock()
		return
	}
	was := t.connected
	t.connected = status == sdk.StatusSubscribed
	resubscribed := t.connected && !was
	if resubscribed {
		t.syncs++
	}
	loaded := t.state == ThreadReady || t.state == ThreadSendFailed
	t.mu.Unlock()
	t.notify()

	if resubscribed && loaded {
		go t.resync(context.Background())
	}
}

// insertLocked adds a copy of m at its (created_at, id) position unless its
// id is already present
func (t *Thread) insertLocked(m *sdk.Message) bool {
	if m == nil || m.Id == "" {
		return false
	}
	if _, ok := t.ids[m.Id]; ok {
		return false
	}
	t.ids[m.Id] = struct{}{}
	cp := *m
	if _, ok := t.read[cp.Id]; ok {
		cp.Read = true
	}
	m = &cp

	i := sort.Search(len(t.messages), func(i int) bool {
		return messageLess(m, t.messages[i])
	})
	t.messages = append(t.messages, nil)
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = m
	return true
}

func messageLess(a, b *sdk.Message) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return lessId(a.Id, b.Id)
}

// lessId orders decimal ids numerically without parsing them
func lessId(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (t *Thread) notify() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(t.Snapshot())
	}
}

// Snapshot returns a copy of the current state
func (t *Thread) Snapshot() ThreadSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	messages := make([]*sdk.Message, len(t.messages))
	for i, m := range t.messages {
		cp := *m
		messages[i] = &cp
	}
	return ThreadSnapshot{
		ConversationId: t.conversationId,
		State:          t.state,
		Messages:       messages,
		Draft:          t.draft,
		Err:            t.err,
		Sending:        t.sending,
		Connected:      t.connected,
	}
}

// State returns the current state
func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
