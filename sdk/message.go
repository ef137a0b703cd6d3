package sdk

import "context"

// ListMessages gets the history of a conversation, oldest first
func (c *Client) ListMessages(ctx context.Context, conversationId string) ([]*Message, error) {
	var result []*Message
	params := map[string]string{"conversation_id": conversationId}
	if err := c.get(ctx, "/msg/list", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestMessage gets the most recent message of a conversation, nil when it has none
func (c *Client) LatestMessage(ctx context.Context, conversationId string) (*Message, error) {
	var result *Message
	params := map[string]string{"conversation_id": conversationId}
	if err := c.get(ctx, "/msg/latest", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CountUnread counts messages of the conversation the signed in profile has not read
func (c *Client) CountUnread(ctx context.Context, conversationId string) (int64, error) {
	var result struct {
		UnreadCount int64 `json:"unread_count"`
	}
	params := map[string]string{"conversation_id": conversationId}
	if err := c.get(ctx, "/msg/unread_count", params, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}

// InsertMessage sends content to a conversation as the signed in profile
func (c *Client) InsertMessage(ctx context.Context, conversationId, content string) (*Message, error) {
	var result Message
	body := map[string]string{"conversation_id": conversationId, "content": content}
	if err := c.post(ctx, "/msg/send", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkRead marks every message from the other participant as read and returns the ids it changed
func (c *Client) MarkRead(ctx context.Context, conversationId string) ([]string, error) {
	var result struct {
		Updated    int      `json:"updated"`
		MessageIds []string `json:"message_ids"`
	}
	body := map[string]string{"conversation_id": conversationId}
	if err := c.post(ctx, "/msg/mark_read", body, &result); err != nil {
		return nil, err
	}
	return result.MessageIds, nil
}
