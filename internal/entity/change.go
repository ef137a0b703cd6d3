package entity

import "encoding/json"

// ChangeEvent is a committed row change published to realtime subscribers.
// Audience lists the users allowed to observe the row and is never sent to clients.
type ChangeEvent struct {
	Topic    string            `json:"topic"`
	Event    string            `json:"event"`
	Record   json.RawMessage   `json:"record"`
	Columns  map[string]string `json:"columns"`
	Audience []string          `json:"audience"`
	CommitAt int64             `json:"commit_at"`
}

// NewChangeEvent builds a change event for record. columns holds the filterable
// column values of the row.
func NewChangeEvent(topic, event string, record interface{}, columns map[string]string, audience []string) (*ChangeEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return &ChangeEvent{
		Topic:    topic,
		Event:    event,
		Record:   data,
		Columns:  columns,
		Audience: audience,
		CommitAt: NowUnixMilli(),
	}, nil
}

// ConversationColumns returns the filterable columns of a conversation row
func ConversationColumns(c *Conversation) map[string]string {
	return map[string]string{
		"id":               c.Id,
		"participant_1_id": c.Participant1Id,
		"participant_2_id": c.Participant2Id,
	}
}

// MessageColumns returns the filterable columns of a message row
func MessageColumns(m *Message) map[string]string {
	return map[string]string{
		"id":              m.Id,
		"conversation_id": m.ConversationId,
		"sender_id":       m.SenderId,
	}
}
