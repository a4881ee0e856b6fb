package contract

import (
	"context"

	"chatedge-be/internal/entity"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error)
	FindLatestByUserId(ctx context.Context, userId uuid.UUID) (*entity.ChatSession, error)
}
