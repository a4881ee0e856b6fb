package contract

import (
	"context"

	"chatedge-be/internal/entity"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	// Append stores messages after the current tail of the session, assigning
	// consecutive sequence numbers in slice order.
	Append(ctx context.Context, sessionId uuid.UUID, messages []*entity.ChatMessage) error
	FindBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error)
	// FindRecentBySessionId returns at most limit messages, newest first.
	FindRecentBySessionId(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error)
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error)
}
