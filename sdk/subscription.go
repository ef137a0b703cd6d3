package sdk

import "sync"

// Subscription is the handle of one open realtime channel. Close releases it
// and is safe to call any number of times.
type Subscription struct {
	id      string
	once    sync.Once
	release func()
}

// NewSubscription wraps release so it runs at most once
func NewSubscription(id string, release func()) *Subscription {
	return &Subscription{id: id, release: release}
}

// Id returns the channel id
func (s *Subscription) Id() string {
	return s.id
}

// Close releases the channel. A push already being dispatched may still
// reach the handler.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
