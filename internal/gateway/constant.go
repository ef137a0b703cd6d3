package gateway

import "time"

// WebSocket protocol constants
const (
	// Request identifiers
	WSSubscribe   = 1001 // Open a realtime channel
	WSUnsubscribe = 1002 // Close a realtime channel

	// Push identifiers
	WSPushChange    = 2001 // Server push of a row change
	WSKickOnlineMsg = 2002 // Kick user offline
	WSDataError     = 3001 // Data error
)

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200

	// OnlineRefreshPeriod is how often the online TTL of connected users is renewed
	OnlineRefreshPeriod = 30 * time.Second
)

// Query parameter keys
const (
	QueryToken = "token"
)
