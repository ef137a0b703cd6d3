package sdk

import (
	"context"
	"strconv"
	"strings"
)

// GetMyProfile gets the signed in profile
func (c *Client) GetMyProfile(ctx context.Context) (*Profile, error) {
	var result Profile
	if err := c.get(ctx, "/profile/info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProfile gets a profile by Id
func (c *Client) GetProfile(ctx context.Context, userId string) (*Profile, error) {
	var result Profile
	if err := c.get(ctx, "/profile/info/"+userId, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProfiles browses profiles, optionally narrowed by role and a name query
func (c *Client) ListProfiles(ctx context.Context, role, query string, limit int) ([]*Profile, error) {
	params := map[string]string{}
	if role != "" {
		params["role"] = role
	}
	if query != "" {
		params["q"] = query
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var result []*Profile
	if err := c.get(ctx, "/profile/list", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateProfile updates the signed in profile
func (c *Client) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*Profile, error) {
	var result Profile
	if err := c.put(ctx, "/profile/update", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Online reports which of userIds currently hold a realtime connection
func (c *Client) Online(ctx context.Context, userIds []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIds))
	if len(userIds) == 0 {
		return result, nil
	}
	params := map[string]string{"user_ids": strings.Join(userIds, ",")}
	if err := c.get(ctx, "/profile/online", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
