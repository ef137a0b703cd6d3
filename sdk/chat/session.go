package chat

import (
	"context"
	"errors"
	"time"

	"github.com/mbeoliero/hearth/sdk"
)

var (
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrInvalidUser      = errors.New("user id is required")
	ErrClosed           = errors.New("view is closed")
)

// DefaultTimeout bounds every backend call made by the core
const DefaultTimeout = 10 * time.Second

// Session is the signed-in user, shared read-only by every component
type Session struct {
	UserId  string
	Profile *sdk.Profile
}

// NewSession builds a session for a signed-in profile
func NewSession(profile *sdk.Profile) (*Session, error) {
	if profile == nil || profile.Id == "" {
		return nil, ErrInvalidUser
	}
	return &Session{UserId: profile.Id, Profile: profile}, nil
}

func (s *Session) validate() error {
	if s == nil || s.UserId == "" {
		return ErrInvalidUser
	}
	return nil
}

type options struct {
	timeout     time.Duration
	presence    PresenceSource
	enrichLimit int
}

// Option configures directories, threads and the inbox
type Option func(*options)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPresence enables online indicators in the directory
func WithPresence(p PresenceSource) Option {
	return func(o *options) {
		o.presence = p
	}
}

// WithEnrichLimit caps how many directory rows are enriched at once
func WithEnrichLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.enrichLimit = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout, enrichLimit: 8}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}
