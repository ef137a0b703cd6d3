package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/mbeoliero/kit/log"
)

// Inbox owns the directory and the one open thread of a signed-in user
type Inbox struct {
	store    RecordStore
	channels ChannelManager
	session  *Session
	opts     []Option
	dir      *Directory

	mu       sync.Mutex
	thread   *Thread
	onThread func(ThreadSnapshot)
	closed   bool
}

// NewInbox creates an inbox. Call Start to load and subscribe.
func NewInbox(store RecordStore, channels ChannelManager, session *Session, opts ...Option) (*Inbox, error) {
	dir, err := NewDirectory(store, channels, session, opts...)
	if err != nil {
		return nil, err
	}
	return &Inbox{
		store:    store,
		channels: channels,
		session:  session,
		opts:     opts,
		dir:      dir,
	}, nil
}

// Start subscribes the directory before the first load so no change is missed
func (i *Inbox) Start(ctx context.Context) error {
	if err := i.dir.Subscribe(ctx); err != nil {
		return err
	}
	return i.dir.Load(ctx)
}

// Directory returns the conversation directory
func (i *Inbox) Directory() *Directory {
	return i.dir
}

// Thread returns the open thread, nil when no conversation is selected
func (i *Inbox) Thread() *Thread {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.thread
}

// OnThreadChange registers fn on every thread the inbox opens from now on
func (i *Inbox) OnThreadChange(fn func(ThreadSnapshot)) {
	i.mu.Lock()
	i.onThread = fn
	i.mu.Unlock()
}

// Select opens conversationId. The new thread is live before the previous
// one is closed. A failed open keeps the previous thread.
func (i *Inbox) Select(ctx context.Context, conversationId string) (*Thread, error) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil, ErrClosed
	}
	if i.thread != nil && i.thread.ConversationId() == conversationId && i.thread.State() != ThreadClosed {
		t := i.thread
		i.mu.Unlock()
		return t, nil
	}
	onThread := i.onThread
	i.mu.Unlock()

	t, err := NewThread(i.store, i.channels, i.session, conversationId, i.opts...)
	if err != nil {
		return nil, err
	}
	t.OnChange(onThread)
	if err := t.Open(ctx); err != nil {
		t.Close()
		return nil, err
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		t.Close()
		return nil, ErrClosed
	}
	prev := i.thread
	i.thread = t
	i.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	// the directory only hears about inserts, so refresh it to pick up the read marks
	if err := i.dir.Load(ctx); err != nil && !errors.Is(err, ErrClosed) {
		log.CtxWarn(ctx, "reload directory after select failed: %v", err)
	}
	return t, nil
}

// CloseThread closes the open thread and leaves nothing selected
func (i *Inbox) CloseThread() {
	i.mu.Lock()
	t := i.thread
	i.thread = nil
	i.mu.Unlock()

	if t != nil {
		t.Close()
	}
}

// StartChat finds or creates the conversation with other and selects it
func (i *Inbox) StartChat(ctx context.Context, otherUserId string) (*Thread, error) {
	conv, err := StartOrGetConversation(ctx, i.store, i.session.UserId, otherUserId, i.opts...)
	if err != nil {
		return nil, err
	}
	return i.Select(ctx, conv.Id)
}

// Close tears down the directory and the open thread
func (i *Inbox) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	t := i.thread
	i.thread = nil
	i.mu.Unlock()

	if t != nil {
		t.Close()
	}
	i.dir.Unsubscribe()
}
