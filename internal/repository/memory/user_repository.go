package memory

import (
	"context"
	"strings"
	"time"

	"chatedge-be/internal/entity"
	"chatedge-be/internal/repository/contract"

	"github.com/google/uuid"
)

type userRepository struct {
	uow *UnitOfWork
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.uow.write(func(d *state) error {
		email := normalizeEmail(user.Email)
		if _, taken := d.emails[email]; taken {
			return contract.ErrDuplicateKey
		}
		now := time.Now()
		if user.Id == uuid.Nil {
			user.Id = uuid.New()
		}
		user.Email = email
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		user.UpdatedAt = now
		d.users[user.Id] = *user
		d.emails[email] = user.Id
		return nil
	})
}

func (r *userRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var out *entity.User
	r.uow.read(func(d *state) {
		if u, ok := d.users[id]; ok {
			out = &u
		}
	})
	return out, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var out *entity.User
	r.uow.read(func(d *state) {
		if id, ok := d.emails[normalizeEmail(email)]; ok {
			u := d.users[id]
			out = &u
		}
	})
	return out, nil
}

// FindByIdForUpdate relies on the transaction holding the store-wide writer lock.
func (r *userRepository) FindByIdForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.FindById(ctx, id)
}

func (r *userRepository) SetActiveChatSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	return r.uow.write(func(d *state) error {
		u, ok := d.users[userId]
		if !ok {
			return nil
		}
		sid := sessionId
		u.ActiveChatSessionId = &sid
		u.UpdatedAt = time.Now()
		d.users[userId] = u
		return nil
	})
}
