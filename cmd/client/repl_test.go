package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/hearth/sdk/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is an empty account with a single known profile
type stubStore struct {
	profiles []*sdk.Profile
}

func (s *stubStore) ListConversations(ctx context.Context) ([]*sdk.Conversation, error) {
	return nil, nil
}

func (s *stubStore) GetProfile(ctx context.Context, userId string) (*sdk.Profile, error) {
	return nil, sdk.ErrProfileNotFound
}

func (s *stubStore) LatestMessage(ctx context.Context, conversationId string) (*sdk.Message, error) {
	return nil, nil
}

func (s *stubStore) CountUnread(ctx context.Context, conversationId string) (int64, error) {
	return 0, nil
}

func (s *stubStore) ListMessages(ctx context.Context, conversationId string) ([]*sdk.Message, error) {
	return nil, nil
}

func (s *stubStore) MarkRead(ctx context.Context, conversationId string) ([]string, error) {
	return nil, nil
}

func (s *stubStore) InsertMessage(ctx context.Context, conversationId, content string) (*sdk.Message, error) {
	return nil, errors.New("offline")
}

func (s *stubStore) TouchConversation(ctx context.Context, conversationId string) (*sdk.Conversation, error) {
	return nil, nil
}

func (s *stubStore) FindConversation(ctx context.Context, otherUserId string) (*sdk.Conversation, error) {
	return nil, nil
}

func (s *stubStore) CreateConversation(ctx context.Context, otherUserId string) (*sdk.Conversation, error) {
	return &sdk.Conversation{Id: "42", Participant1Id: "me", Participant2Id: otherUserId}, nil
}

func (s *stubStore) ListProfiles(ctx context.Context, role, query string, limit int) ([]*sdk.Profile, error) {
	return s.profiles, nil
}

type stubChannels struct{}

func (stubChannels) Subscribe(ctx context.Context, spec sdk.ChannelSpec, onEvent sdk.EventHandler, onStatus sdk.StatusHandler) (*sdk.Subscription, error) {
	if onStatus != nil {
		onStatus(sdk.StatusSubscribed, nil)
	}
	return sdk.NewSubscription(spec.Topic, nil), nil
}

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	store := &stubStore{profiles: []*sdk.Profile{
		{Id: "me", FullName: "Me", Role: sdk.RoleHomeowner},
		{Id: "d1", FullName: "Dana", Role: sdk.RoleDesigner, Location: "Austin"},
	}}
	session, err := chat.NewSession(&sdk.Profile{Id: "me", FullName: "Me"})
	require.NoError(t, err)
	inbox, err := chat.NewInbox(store, stubChannels{}, session)
	require.NoError(t, err)
	t.Cleanup(inbox.Close)

	out := &bytes.Buffer{}
	r := newRepl(inbox, store, session, strings.NewReader(""), out, time.Second)
	require.NoError(t, inbox.Start(context.Background()))
	out.Reset()
	return r, out
}

func TestRepl_Commands(t *testing.T) {
	r, out := newTestRepl(t)
	ctx := context.Background()

	assert.False(t, r.handle(ctx, "/list"))
	assert.Contains(t, out.String(), emptyDirectory)
	assert.Contains(t, out.String(), "[live]")
	out.Reset()

	r.handle(ctx, "hello")
	assert.Contains(t, out.String(), noSelection)
	out.Reset()

	r.handle(ctx, "/open 3")
	assert.Contains(t, out.String(), "usage: /open")
	out.Reset()

	r.handle(ctx, "/find designer")
	assert.Contains(t, out.String(), "Dana (designer) Austin")
	assert.NotContains(t, out.String(), "Me (homeowner)")
	out.Reset()

	r.handle(ctx, "/chat me")
	assert.Contains(t, out.String(), "cannot message yourself")
	out.Reset()

	r.handle(ctx, "/bogus")
	assert.Contains(t, out.String(), "unknown command")

	assert.True(t, r.handle(ctx, "/quit"))
}

func TestRepl_StartChatAndFailedSend(t *testing.T) {
	r, out := newTestRepl(t)
	ctx := context.Background()

	r.handle(ctx, "/chat d1")
	assert.Contains(t, out.String(), emptyThread)
	require.NotNil(t, r.inbox.Thread())
	out.Reset()

	r.handle(ctx, "see you at 5")
	assert.Contains(t, out.String(), "not sent")
	assert.Equal(t, "see you at 5", r.inbox.Thread().Draft())
	out.Reset()

	r.handle(ctx, "/close")
	assert.Contains(t, out.String(), noSelection)
	assert.Nil(t, r.inbox.Thread())
}

func TestRenderDirectory(t *testing.T) {
	var b bytes.Buffer
	renderDirectory(&b, chat.DirectorySnapshot{State: chat.DirectoryReady}, nil)
	assert.Contains(t, b.String(), emptyDirectory)
	assert.Contains(t, b.String(), "[offline]")

	b.Reset()
	views := []*chat.ConversationView{
		{
			Conversation: &sdk.Conversation{Id: "1"},
			Other:        &sdk.Profile{FullName: "Bob"},
			LastMessage:  &sdk.Message{Content: "Hello"},
			UnreadCount:  2,
			Online:       true,
		},
		{Conversation: &sdk.Conversation{Id: "2"}, Other: &sdk.Profile{FullName: "Carol"}},
		{Conversation: &sdk.Conversation{Id: "3"}, Err: errors.New("boom")},
	}
	renderDirectory(&b, chat.DirectorySnapshot{State: chat.DirectoryReady, Connected: true, TotalUnread: 2}, views)
	out := b.String()
	assert.Contains(t, out, "[live] unread=2")
	assert.Contains(t, out, " 1. * Bob (2) - Hello")
	assert.Contains(t, out, " 2. Carol - "+emptyThread)
	assert.Contains(t, out, " 3. unknown [incomplete]")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
