package memory

import (
	"context"
	"time"

	"chatedge-be/internal/entity"

	"github.com/google/uuid"
)

type chatMessageRepository struct {
	uow *UnitOfWork
}

func (r *chatMessageRepository) Append(ctx context.Context, sessionId uuid.UUID, messages []*entity.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return r.uow.write(func(d *state) error {
		log := d.messages[sessionId]
		var tail int64
		if n := len(log); n > 0 {
			tail = log[n-1].Sequence
		}
		for i, msg := range messages {
			msg.ChatSessionId = sessionId
			msg.Sequence = tail + int64(i) + 1
			if msg.Id == uuid.Nil {
				msg.Id = uuid.New()
			}
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = time.Now()
			}
			log = append(log, *msg)
		}
		d.messages[sessionId] = log
		return nil
	})
}

func (r *chatMessageRepository) FindBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error) {
	var out []*entity.ChatMessage
	r.uow.read(func(d *state) {
		log := d.messages[sessionId]
		out = make([]*entity.ChatMessage, len(log))
		for i := range log {
			m := log[i]
			out[i] = &m
		}
	})
	return out, nil
}

func (r *chatMessageRepository) FindRecentBySessionId(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	var out []*entity.ChatMessage
	r.uow.read(func(d *state) {
		log := d.messages[sessionId]
		for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
			m := log[i]
			out = append(out, &m)
		}
	})
	return out, nil
}

func (r *chatMessageRepository) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	var n int64
	err := r.uow.write(func(d *state) error {
		n = int64(len(d.messages[sessionId]))
		delete(d.messages, sessionId)
		return nil
	})
	return n, err
}
