package entity

// Message is immutable once created except for Read, which only goes false to true.
type Message struct {
	Id             string `json:"id" gorm:"column:id;primaryKey;type:varchar(64)"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;type:varchar(64);index:idx_msg_conv_created,priority:1"`
	SenderId       string `json:"sender_id" gorm:"column:sender_id;type:varchar(64)"`
	Content        string `json:"content" gorm:"column:content;type:text"`
	Read           bool   `json:"read" gorm:"column:is_read;default:false"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;index:idx_msg_conv_created,priority:2"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}
