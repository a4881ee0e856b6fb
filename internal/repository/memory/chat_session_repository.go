package memory

import (
	"context"
	"time"

	"chatedge-be/internal/entity"

	"github.com/google/uuid"
)

type chatSessionRepository struct {
	uow *UnitOfWork
}

func (r *chatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	return r.uow.write(func(d *state) error {
		now := time.Now()
		if session.Id == uuid.Nil {
			session.Id = uuid.New()
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = now
		}
		if session.UpdatedAt.IsZero() {
			session.UpdatedAt = now
		}
		d.sessions[session.Id] = *session
		return nil
	})
}

func (r *chatSessionRepository) Update(ctx context.Context, session *entity.ChatSession) error {
	return r.uow.write(func(d *state) error {
		current, ok := d.sessions[session.Id]
		if !ok {
			return nil
		}
		current.Title = session.Title
		current.UpdatedAt = session.UpdatedAt
		d.sessions[session.Id] = current
		return nil
	})
}

func (r *chatSessionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error) {
	var out *entity.ChatSession
	r.uow.read(func(d *state) {
		if s, ok := d.sessions[id]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r *chatSessionRepository) FindLatestByUserId(ctx context.Context, userId uuid.UUID) (*entity.ChatSession, error) {
	var out *entity.ChatSession
	r.uow.read(func(d *state) {
		for _, s := range d.sessions {
			if s.UserId != userId {
				continue
			}
			if out == nil || s.UpdatedAt.After(out.UpdatedAt) {
				candidate := s
				out = &candidate
			}
		}
	})
	return out, nil
}
