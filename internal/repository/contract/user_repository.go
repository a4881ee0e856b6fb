package contract

import (
	"context"

	"chatedge-be/internal/entity"

	"github.com/google/uuid"
)

type UserRepository interface {
	// Create fails with ErrDuplicateKey when the email is taken.
	Create(ctx context.Context, user *entity.User) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// FindByIdForUpdate locks the user row until the surrounding transaction ends.
	FindByIdForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error)
	SetActiveChatSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
}
