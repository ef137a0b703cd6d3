package sdk

import "context"

// Register registers a new profile
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*Profile, error) {
	var result Profile
	if err := c.post(ctx, "/auth/register", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login authenticates a profile and returns a token.
// The token is stored in the client for subsequent requests.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var result LoginResponse
	if err := c.post(ctx, "/auth/login", req, &result); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = result.Token
	if result.Profile != nil {
		c.userId = result.Profile.Id
	}
	c.mu.Unlock()
	return &result, nil
}

// Logout revokes the current token and forgets it
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/auth/logout", nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = ""
	c.userId = ""
	c.mu.Unlock()
	return nil
}
