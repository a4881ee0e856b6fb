package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_messages_session_order,priority:1"`
	Role          string    `gorm:"type:varchar(16);not null"`
	Content       string    `gorm:"type:text;not null"`
	Sequence      int64     `gorm:"not null;index:idx_chat_messages_session_order,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
