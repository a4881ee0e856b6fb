package implementation

import (
	"context"
	"fmt"
	"time"

	"chatedge-be/internal/entity"
	"chatedge-be/internal/mapper"
	"chatedge-be/internal/model"
	"chatedge-be/internal/repository/contract"
	"chatedge-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatMessageRepositoryImpl) find(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find chat messages: %w", err)
	}
	return r.mapper.ChatMessagesToEntities(models), nil
}

// Append locks the session row so concurrent appends to the same session
// receive distinct, gap-free sequence numbers.
func (r *ChatMessageRepositoryImpl) Append(ctx context.Context, sessionId uuid.UUID, messages []*entity.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)

	var locked model.ChatSession
	if err := (specification.ForUpdate{}).Apply(db).Select("id").Where("id = ?", sessionId).First(&locked).Error; err != nil {
		return fmt.Errorf("lock chat session: %w", err)
	}

	var tail int64
	err := db.Model(&model.ChatMessage{}).
		Where("chat_session_id = ?", sessionId).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&tail).Error
	if err != nil {
		return fmt.Errorf("read message tail: %w", err)
	}

	models := make([]*model.ChatMessage, len(messages))
	for i, msg := range messages {
		msg.ChatSessionId = sessionId
		msg.Sequence = tail + int64(i) + 1
		if msg.Id == uuid.Nil {
			msg.Id = uuid.New()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		models[i] = r.mapper.ChatMessageToModel(msg)
	}

	if err := db.Create(&models).Error; err != nil {
		return fmt.Errorf("insert chat messages: %w", err)
	}
	return nil
}

func (r *ChatMessageRepositoryImpl) FindBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error) {
	return r.find(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.TurnOrder{},
	)
}

func (r *ChatMessageRepositoryImpl) FindRecentBySessionId(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	return r.find(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.TurnOrder{Desc: true},
		specification.Limit{N: limit},
	)
}

func (r *ChatMessageRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("chat_session_id = ?", sessionId).Delete(&model.ChatMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chat messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}
