package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// TurnOrder sorts messages in the order they were appended to the session.
type TurnOrder struct {
	Desc bool
}

func (s TurnOrder) Apply(db *gorm.DB) *gorm.DB {
	return OrderBy{Field: "sequence", Desc: s.Desc}.Apply(db)
}
