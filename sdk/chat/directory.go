package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/kit/log"
	"golang.org/x/sync/errgroup"
)

// DirectoryState is the load state of a Directory
type DirectoryState int

const (
	DirectoryIdle DirectoryState = iota
	DirectoryLoading
	DirectoryReady
	DirectoryFailed
)

func (s DirectoryState) String() string {
	switch s {
	case DirectoryIdle:
		return "idle"
	case DirectoryLoading:
		return "loading"
	case DirectoryReady:
		return "ready"
	case DirectoryFailed:
		return "failed"
	}
	return "unknown"
}

// ConversationView is one directory row. Err is set when part of the row
// could not be fetched; the fields it covers stay zero.
type ConversationView struct {
	Conversation *sdk.Conversation
	Other        *sdk.Profile
	LastMessage  *sdk.Message
	UnreadCount  int64
	Online       bool
	Err          error
}

// OtherName returns the other participant's name, empty when unknown
func (v *ConversationView) OtherName() string {
	if v.Other == nil {
		return ""
	}
	return v.Other.FullName
}

// DirectorySnapshot is a consistent copy of the directory state
type DirectorySnapshot struct {
	State       DirectoryState
	Entries     []*ConversationView
	Err         error
	Connected   bool
	TotalUnread int64
}

// Directory is the enriched list of the user's conversations. It reloads on
// every realtime change touching the user.
type Directory struct {
	store    RecordStore
	channels ChannelManager
	session  *Session
	opts     options

	mu        sync.Mutex
	gen       uint64
	state     DirectoryState
	entries   []*ConversationView
	err       error
	connected bool
	closed    bool
	convSub   *sdk.Subscription
	msgSub    *sdk.Subscription
	onChange  func(DirectorySnapshot)
}

// NewDirectory creates an idle directory for the session user
func NewDirectory(store RecordStore, channels ChannelManager, session *Session, opts ...Option) (*Directory, error) {
	if err := session.validate(); err != nil {
		return nil, err
	}
	return &Directory{
		store:    store,
		channels: channels,
		session:  session,
		opts:     newOptions(opts),
	}, nil
}

// OnChange registers fn to run after every state change
func (d *Directory) OnChange(fn func(DirectorySnapshot)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Load fetches and enriches all conversations. A load superseded by a newer
// one, or finishing after Unsubscribe, leaves the state untouched.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.gen++
	gen := d.gen
	d.state = DirectoryLoading
	d.mu.Unlock()
	d.notify()

	listCtx, cancel := d.opts.bound(ctx)
	convs, err := d.store.ListConversations(listCtx)
	cancel()
	if err != nil {
		err = fmt.Errorf("list conversations: %w", err)
		log.CtxError(ctx, "load directory failed: user_id=%s, error=%v", d.session.UserId, err)
		d.apply(gen, func() {
			d.state = DirectoryFailed
			d.err = err
		})
		return err
	}

	views := d.enrich(ctx, convs)

	d.apply(gen, func() {
		d.state = DirectoryReady
		d.entries = views
		d.err = nil
	})
	return nil
}

// enrich fills every row concurrently. A row's three lookups run in parallel
// and a failure only degrades that row.
func (d *Directory) enrich(ctx context.Context, convs []*sdk.Conversation) []*ConversationView {
	me := d.session.UserId
	views := make([]*ConversationView, len(convs))

	var g errgroup.Group
	g.SetLimit(d.opts.enrichLimit)
	for i, conv := range convs {
		view := &ConversationView{Conversation: conv}
		views[i] = view
		g.Go(func() error {
			var rg errgroup.Group
			rg.Go(func() error {
				cctx, cancel := d.opts.bound(ctx)
				defer cancel()
				p, err := d.store.GetProfile(cctx, conv.OtherParticipant(me))
				if err != nil {
					return fmt.Errorf("get profile: %w", err)
				}
				view.Other = p
				return nil
			})
			rg.Go(func() error {
				cctx, cancel := d.opts.bound(ctx)
				defer cancel()
				m, err := d.store.LatestMessage(cctx, conv.Id)
				if err != nil {
					return fmt.Errorf("latest message: %w", err)
				}
				view.LastMessage = m
				return nil
			})
			rg.Go(func() error {
				cctx, cancel := d.opts.bound(ctx)
				defer cancel()
				n, err := d.store.CountUnread(cctx, conv.Id)
				if err != nil {
					return fmt.Errorf("count unread: %w", err)
				}
				view.UnreadCount = n
				return nil
			})
			if err := rg.Wait(); err != nil {
				view.Err = err
				log.CtxWarn(ctx, "enrich conversation failed: conversation_id=%s, error=%v", conv.Id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if d.opts.presence != nil && len(views) > 0 {
		ids := make([]string, 0, len(views))
		for _, v := range views {
			ids = append(ids, v.Conversation.OtherParticipant(me))
		}
		pctx, cancel := d.opts.bound(ctx)
		online, err := d.opts.presence.Online(pctx, ids)
		cancel()
		if err != nil {
			log.CtxWarn(ctx, "fetch presence failed: %v", err)
		} else {
			for _, v := range views {
				v.Online = online[v.Conversation.OtherParticipant(me)]
			}
		}
	}
	return views
}

// Subscribe opens the conversation and message channels. Every event on
// either triggers a full reload.
func (d *Directory) Subscribe(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.convSub != nil {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	me := d.session.UserId
	convSub, err := d.channels.Subscribe(ctx, sdk.ChannelSpec{
		Topic:  sdk.TopicConversations,
		Events: []string{sdk.EventAny},
		Filter: []sdk.Filter{
			{Column: sdk.ColumnParticipant1, Value: me},
			{Column: sdk.ColumnParticipant2, Value: me},
		},
	}, d.handleEvent, d.handleStatus)
	if err != nil {
		return fmt.Errorf("subscribe conversations: %w", err)
	}

	msgSub, err := d.channels.Subscribe(ctx, sdk.ChannelSpec{
		Topic:  sdk.TopicMessages,
		Events: []string{sdk.EventInsert},
	}, d.handleEvent, nil)
	if err != nil {
		convSub.Close()
		return fmt.Errorf("subscribe messages: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		convSub.Close()
		msgSub.Close()
		return ErrClosed
	}
	d.convSub = convSub
	d.msgSub = msgSub
	d.mu.Unlock()
	return nil
}

// Unsubscribe releases both channels and tears the directory down. Results
// and events arriving afterwards are ignored.
func (d *Directory) Unsubscribe() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.connected = false
	convSub, msgSub := d.convSub, d.msgSub
	d.convSub, d.msgSub = nil, nil
	d.mu.Unlock()

	convSub.Close()
	msgSub.Close()
}

func (d *Directory) handleEvent(ev *sdk.ChangeEvent) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	log.Debug("directory change: topic=%s, event=%s", ev.Topic, ev.Event)
	go func() {
		if err := d.Load(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			log.Warn("reload directory failed: %v", err)
		}
	}()
}

// handleStatus tracks the conversation channel. Becoming subscribed after a
// load has started reloads, because changes pushed before the ack were lost.
func (d *Directory) handleStatus(status sdk.ChannelStatus, err error) {
	if err != nil {
		log.Warn("directory channel status: status=%s, error=%v", status, err)
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	was := d.connected
	d.connected = status == sdk.StatusSubscribed
	reload := d.connected && !was && d.state != DirectoryIdle
	d.mu.Unlock()
	d.notify()

	if reload {
		go func() {
			if err := d.Load(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
				log.Warn("reload directory after resubscribe failed: %v", err)
			}
		}()
	}
}

// apply runs fn only while gen is still the latest load of a live directory
func (d *Directory) apply(gen uint64, fn func()) bool {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return false
	}
	fn()
	d.mu.Unlock()
	d.notify()
	return true
}

func (d *Directory) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn(d.Snapshot())
	}
}

// Snapshot returns a copy of the current state
func (d *Directory) Snapshot() DirectorySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := make([]*ConversationView, len(d.entries))
	copy(entries, d.entries)
	return DirectorySnapshot{
		State:       d.state,
		Entries:     entries,
		Err:         d.err,
		Connected:   d.connected,
		TotalUnread: totalUnread(entries),
	}
}

// Connected reports whether the conversation channel is subscribed
func (d *Directory) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// TotalUnread sums the unread counts of all rows
func (d *Directory) TotalUnread() int64 {
	return d.Snapshot().TotalUnread
}

// Filter applies FilterViews to the current rows
func (d *Directory) Filter(query string) []*ConversationView {
	return FilterViews(d.Snapshot().Entries, query)
}

// FilterViews keeps rows whose other participant's name contains query,
// ignoring case. An empty query keeps every row.
func FilterViews(views []*ConversationView, query string) []*ConversationView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return views
	}
	out := make([]*ConversationView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.OtherName()), q) {
			out = append(out, v)
		}
	}
	return out
}

func totalUnread(views []*ConversationView) int64 {
	var n int64
	for _, v := range views {
		n += v.UnreadCount
	}
	return n
}
