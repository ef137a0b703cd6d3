package constant

// Profile roles
const (
	RoleHomeowner  = "homeowner"
	RoleDesigner   = "designer"
	RoleFreelancer = "freelancer"
)

// IsValidRole reports whether role is one of the marketplace roles
func IsValidRole(role string) bool {
	switch role {
	case RoleHomeowner, RoleDesigner, RoleFreelancer:
		return true
	default:
		return false
	}
}

// Realtime topics, one per table that emits change events
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

// Filterable columns per topic
const (
	ColumnParticipant1   = "participant_1_id"
	ColumnParticipant2   = "participant_2_id"
	ColumnConversationId = "conversation_id"
	ColumnSenderId       = "sender_id"
)

// Online status
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// Realtime broker kinds
const (
	BrokerLocal = "local"
	BrokerRedis = "redis"
	BrokerAMQP  = "amqp"
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyToken   = "token:%s"  // token:{user_id}
	redisKeyOnline  = "online:%s" // online:{user_id}
	redisKeyChanges = "changes"   // pub/sub channel for change events
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "hearth:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyToken() string   { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string  { return redisKeyPrefix + redisKeyOnline }
func RedisKeyChanges() string { return redisKeyPrefix + redisKeyChanges }
