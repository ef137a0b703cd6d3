package entity

// Conversation pairs exactly two profiles. PairKey is unique, so an unordered
// pair never owns more than one conversation.
type Conversation struct {
	Id             string `json:"id" gorm:"column:id;primaryKey;type:varchar(64)"`
	Participant1Id string `json:"participant_1_id" gorm:"column:participant_1_id;type:varchar(64);index"`
	Participant2Id string `json:"participant_2_id" gorm:"column:participant_2_id;type:varchar(64);index"`
	PairKey        string `json:"-" gorm:"column:pair_key;type:varchar(160);uniqueIndex"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at;index"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// HasParticipant reports whether userId is one of the two participants
func (c *Conversation) HasParticipant(userId string) bool {
	return userId != "" && (c.Participant1Id == userId || c.Participant2Id == userId)
}

// OtherParticipant returns the participant that is not userId
func (c *Conversation) OtherParticipant(userId string) string {
	if c.Participant1Id == userId {
		return c.Participant2Id
	}
	return c.Participant1Id
}

// Participants returns both participant ids
func (c *Conversation) Participants() []string {
	return []string{c.Participant1Id, c.Participant2Id}
}
