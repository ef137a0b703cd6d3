// Package chat is the client-side messaging core: the conversation directory,
// message threads and the start-chat flow. It talks to the backend only
// through RecordStore and ChannelManager.
package chat

import (
	"context"

	"github.com/mbeoliero/hearth/sdk"
)

// RecordStore reads and writes the records the core needs. Every call acts
// as the authenticated user of the store.
type RecordStore interface {
	// ListConversations returns the user's conversations, most recently updated first
	ListConversations(ctx context.Context) ([]*sdk.Conversation, error)
	GetProfile(ctx context.Context, userId string) (*sdk.Profile, error)
	// LatestMessage returns nil when the conversation has no messages
	LatestMessage(ctx context.Context, conversationId string) (*sdk.Message, error)
	// CountUnread counts unread messages the user did not send
	CountUnread(ctx context.Context, conversationId string) (int64, error)
	// ListMessages returns the history ordered by created_at then id
	ListMessages(ctx context.Context, conversationId string) ([]*sdk.Message, error)
	// MarkRead returns the ids of the messages it flagged
	MarkRead(ctx context.Context, conversationId string) ([]string, error)
	InsertMessage(ctx context.Context, conversationId, content string) (*sdk.Message, error)
	TouchConversation(ctx context.Context, conversationId string) (*sdk.Conversation, error)
	// FindConversation matches the pair in either participant order, nil when none
	FindConversation(ctx context.Context, otherUserId string) (*sdk.Conversation, error)
	CreateConversation(ctx context.Context, otherUserId string) (*sdk.Conversation, error)
}

// ChannelManager opens realtime channels. Closing the returned subscription
// is the only way to release one.
type ChannelManager interface {
	Subscribe(ctx context.Context, spec sdk.ChannelSpec, onEvent sdk.EventHandler, onStatus sdk.StatusHandler) (*sdk.Subscription, error)
}

// PresenceSource reports which users are online
type PresenceSource interface {
	Online(ctx context.Context, userIds []string) (map[string]bool, error)
}

var (
	_ RecordStore    = (*sdk.Client)(nil)
	_ PresenceSource = (*sdk.Client)(nil)
	_ ChannelManager = (*sdk.Realtime)(nil)
)
