package sdk

import (
	"encoding/json"
	"fmt"
)

// Response represents the standard API response
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Profile roles
const (
	RoleHomeowner  = "homeowner"
	RoleDesigner   = "designer"
	RoleFreelancer = "freelancer"
)

// Profile represents public profile info
type Profile struct {
	Id        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarUrl string `json:"avatar_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Conversation pairs two profiles. Participant order carries no meaning.
type Conversation struct {
	Id             string `json:"id"`
	Participant1Id string `json:"participant_1_id"`
	Participant2Id string `json:"participant_2_id"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// OtherParticipant returns the participant that is not userId
func (c *Conversation) OtherParticipant(userId string) string {
	if c.Participant1Id == userId {
		return c.Participant2Id
	}
	return c.Participant1Id
}

// Message is one text entry of a conversation
type Message struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	SenderId       string `json:"sender_id"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
	CreatedAt      int64  `json:"created_at"`
}

// RegisterRequest represents profile registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"profile"`
}

// UpdateProfileRequest represents profile update request
type UpdateProfileRequest struct {
	FullName  string `json:"full_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}

// Realtime topics
const (
	TopicConversations = "conversations"
	TopicMessages      = "messages"
)

// Change event kinds
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
	EventAny    = "*"
)

// Filterable columns
const (
	ColumnParticipant1   = "participant_1_id"
	ColumnParticipant2   = "participant_2_id"
	ColumnConversationId = "conversation_id"
	ColumnSenderId       = "sender_id"
)

// Filter matches rows whose Column equals Value
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// ChannelSpec describes a realtime channel. Filter clauses are ORed and an
// empty filter matches every row the user may observe.
type ChannelSpec struct {
	Topic  string   `json:"topic"`
	Events []string `json:"events"`
	Filter []Filter `json:"filter,omitempty"`
}

// ChannelStatus is the lifecycle state of a realtime channel
type ChannelStatus string

const (
	StatusConnecting   ChannelStatus = "connecting"
	StatusSubscribed   ChannelStatus = "subscribed"
	StatusDisconnected ChannelStatus = "disconnected"
	StatusError        ChannelStatus = "error"
)

// ChangeEvent is a row change delivered on a channel
type ChangeEvent struct {
	Topic    string          `json:"topic"`
	Event    string          `json:"event"`
	Record   json.RawMessage `json:"record"`
	CommitAt int64           `json:"commit_at"`
}

// Message decodes the record of a messages event
func (e *ChangeEvent) Message() (*Message, error) {
	if e.Topic != TopicMessages {
		return nil, fmt.Errorf("change event topic %q is not %q", e.Topic, TopicMessages)
	}
	var msg Message
	if err := json.Unmarshal(e.Record, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message record: %w", err)
	}
	return &msg, nil
}

// Conversation decodes the record of a conversations event
func (e *ChangeEvent) Conversation() (*Conversation, error) {
	if e.Topic != TopicConversations {
		return nil, fmt.Errorf("change event topic %q is not %q", e.Topic, TopicConversations)
	}
	var conv Conversation
	if err := json.Unmarshal(e.Record, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation record: %w", err)
	}
	return &conv, nil
}

// EventHandler receives the change events of one channel
type EventHandler func(ev *ChangeEvent)

// StatusHandler receives the status transitions of one channel. err is set for StatusError
// and for a disconnect caused by a failed dial.
type StatusHandler func(status ChannelStatus, err error)
