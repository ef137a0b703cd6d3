package sdk

import "context"

// ListConversations gets every conversation of the signed in profile, most recent first
func (c *Client) ListConversations(ctx context.Context) ([]*Conversation, error) {
	var result []*Conversation
	if err := c.get(ctx, "/conversation/list", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FindConversation finds the conversation with otherUserId, nil when there is none
func (c *Client) FindConversation(ctx context.Context, otherUserId string) (*Conversation, error) {
	var result *Conversation
	params := map[string]string{"other_user_id": otherUserId}
	if err := c.get(ctx, "/conversation/find", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateConversation starts a conversation with otherUserId. The server returns
// the existing conversation when the pair already has one.
func (c *Client) CreateConversation(ctx context.Context, otherUserId string) (*Conversation, error) {
	var result Conversation
	body := map[string]string{"other_user_id": otherUserId}
	if err := c.post(ctx, "/conversation/create", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TouchConversation moves the conversation's updated_at to now
func (c *Client) TouchConversation(ctx context.Context, conversationId string) (*Conversation, error) {
	var result Conversation
	body := map[string]string{"conversation_id": conversationId}
	if err := c.post(ctx, "/conversation/touch", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
