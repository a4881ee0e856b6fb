package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/entity"
	"chatedge-be/internal/pkg/apperror"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/internal/repository/unitofwork"
	"chatedge-be/pkg/events"
	"chatedge-be/pkg/llm"

	"github.com/google/uuid"
)

const persistTimeout = 10 * time.Second

var errEmptyReply = errors.New("provider returned an empty reply")

// Emitter delivers one realtime event to the caller. Emit blocks until the
// event is queued or ctx is done.
type Emitter interface {
	Emit(ctx context.Context, event string, payload interface{}) error
}

// SyncNotifier reaches every live connection of a user.
type SyncNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, event string, payload interface{})
}

type IChatService interface {
	// SendMessage runs one exchange and returns the whole reply.
	SendMessage(ctx context.Context, userID uuid.UUID, message string) (*dto.ChatTurn, error)
	// StreamMessage runs one exchange, emitting each chunk as it arrives and
	// finishing with assistant:done or chat:error. A cancelled ctx ends the
	// exchange silently.
	StreamMessage(ctx context.Context, userID uuid.UUID, message string, emitter Emitter) error
	History(ctx context.Context, userID uuid.UUID) ([]dto.ChatTurn, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type ChatConfig struct {
	Model         string
	Timeout       time.Duration
	ContextWindow int
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	provider       llm.LLMProvider
	cfg            ChatConfig
	notifier       SyncNotifier
	eventPublisher events.Publisher
	logger         logger.ILogger
	now            func() time.Time
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	provider llm.LLMProvider,
	cfg ChatConfig,
	notifier SyncNotifier,
	eventPublisher events.Publisher,
	log logger.ILogger,
) IChatService {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = constant.DefaultContextWindow
	}
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &chatService{
		uowFactory:     uowFactory,
		provider:       provider,
		cfg:            cfg,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		logger:         log,
		now:            time.Now,
	}
}

type relayState string

const (
	stateIdle             relayState = "idle"
	stateSessionResolved  relayState = "session_resolved"
	stateContextAssembled relayState = "context_assembled"
	stateDispatched       relayState = "dispatched"
	stateStreaming        relayState = "streaming"
	statePersisted        relayState = "persisted"
	stateComplete         relayState = "complete"
	stateErrored          relayState = "errored"
)

// exchange is one message/reply round trip.
type exchange struct {
	id         uuid.UUID
	userID     uuid.UUID
	message    string
	receivedAt time.Time
	state      relayState
	session    *entity.ChatSession
	chunks     int
}

func (s *chatService) advance(x *exchange, next relayState) {
	x.state = next
	s.logger.Debug("CHAT", "Exchange state", map[string]interface{}{
		"exchange_id": x.id.String(),
		"state":       string(next),
	})
}

func (s *chatService) fail(x *exchange, err error) error {
	from := x.state
	x.state = stateErrored
	s.logger.Error("CHAT", "Exchange failed", map[string]interface{}{
		"exchange_id": x.id.String(),
		"user_id":     x.userID.String(),
		"from_state":  string(from),
		"error":       err,
	})
	return err
}

func (s *chatService) SendMessage(ctx context.Context, userID uuid.UUID, message string) (*dto.ChatTurn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperror.Validation(constant.MsgMessageRequired)
	}
	x, reply, err := s.relay(ctx, userID, message, nil)
	if err != nil {
		return nil, err
	}
	s.completed(ctx, x, reply)
	return &dto.ChatTurn{Role: string(entity.ChatRoleAssistant), Content: reply}, nil
}

func (s *chatService) StreamMessage(ctx context.Context, userID uuid.UUID, message string, emitter Emitter) error {
	if strings.TrimSpace(message) == "" {
		return emitter.Emit(ctx, constant.EventChatError, dto.ErrorPayload{Message: constant.MsgMessageRequired})
	}

	x, reply, err := s.relay(ctx, userID, message, func(chunk string) error {
		return emitter.Emit(ctx, constant.EventAssistantToken, chunk)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return emitter.Emit(ctx, constant.EventChatError, dto.ErrorPayload{Message: constant.MsgSomethingWentWrong})
	}

	err = emitter.Emit(ctx, constant.EventAssistantDone, dto.AssistantDonePayload{
		Content: reply,
		Role:    string(entity.ChatRoleAssistant),
	})
	s.completed(ctx, x, reply)
	return err
}

func (s *chatService) relay(ctx context.Context, userID uuid.UUID, message string, onToken llm.TokenHandler) (*exchange, string, error) {
	x := &exchange{
		id:         uuid.New(),
		userID:     userID,
		message:    message,
		receivedAt: s.now(),
		state:      stateIdle,
	}

	session, err := s.resolveSession(ctx, x)
	if err != nil {
		return nil, "", s.fail(x, err)
	}
	x.session = session
	s.advance(x, stateSessionResolved)

	recent, err := s.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().
		FindRecentBySessionId(ctx, session.Id, s.cfg.ContextWindow)
	if err != nil {
		return nil, "", s.fail(x, err)
	}
	history := BuildContext(recent, message)
	s.advance(x, stateContextAssembled)

	reply, err := s.dispatch(ctx, x, history, onToken)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("CHAT", "Exchange abandoned by client", map[string]interface{}{
				"exchange_id": x.id.String(),
				"chunks":      x.chunks,
			})
			return nil, "", ctx.Err()
		}
		return nil, "", s.fail(x, err)
	}

	// A reply that finished generating is kept even if the client left.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.persist(persistCtx, x, reply); err != nil {
		return nil, "", s.fail(x, err)
	}
	s.advance(x, statePersisted)
	return x, reply, nil
}

// completed announces a finished exchange once the caller has its reply.
func (s *chatService) completed(ctx context.Context, x *exchange, reply string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	s.afterWrite(ctx, x.userID, "message", events.New(events.ChatExchangeCompleted, map[string]interface{}{
		"user_id":         x.userID.String(),
		"chat_session_id": x.session.Id.String(),
		"prompt_chars":    len([]rune(x.message)),
		"reply_chars":     len([]rune(reply)),
	}))
	s.advance(x, stateComplete)
}

func (s *chatService) dispatch(ctx context.Context, x *exchange, history []llm.Message, onToken llm.TokenHandler) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var handler llm.TokenHandler
	if onToken != nil {
		handler = func(chunk string) error {
			if x.chunks == 0 {
				s.advance(x, stateStreaming)
			}
			x.chunks++
			return onToken(chunk)
		}
	}

	s.advance(x, stateDispatched)
	var opts []llm.Option
	if s.cfg.Model != "" {
		opts = append(opts, llm.WithModel(s.cfg.Model))
	}
	reply, err := s.provider.Stream(ctx, history, handler, opts...)
	if err != nil {
		return "", apperror.Upstream(err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", apperror.Upstream(errEmptyReply)
	}
	return reply, nil
}

// resolveSession finds or creates the caller's current session and retitles
// it after the incoming message. The user row lock serialises concurrent
// exchanges of one user so they all land in the same session.
func (s *chatService) resolveSession(ctx context.Context, x *exchange) (*entity.ChatSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindByIdForUpdate(ctx, x.userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized(constant.MsgTokenMalfunction)
	}

	session, err := s.currentSession(ctx, uow, user)
	if err != nil {
		return nil, err
	}

	title := MakeTitle(x.message)
	if session == nil {
		session = &entity.ChatSession{
			UserId:    user.Id,
			Title:     title,
			CreatedAt: x.receivedAt,
			UpdatedAt: x.receivedAt,
		}
		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}
	} else {
		session.Title = title
		session.UpdatedAt = x.receivedAt
		if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
			return nil, err
		}
	}

	if user.ActiveChatSessionId == nil || *user.ActiveChatSessionId != session.Id {
		if err := uow.UserRepository().SetActiveChatSession(ctx, user.Id, session.Id); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return session, nil
}

// currentSession follows the user's pointer, falling back to the most
// recently updated session for users that predate it.
func (s *chatService) currentSession(ctx context.Context, uow unitofwork.UnitOfWork, user *entity.User) (*entity.ChatSession, error) {
	if user.ActiveChatSessionId != nil {
		session, err := uow.ChatSessionRepository().FindById(ctx, *user.ActiveChatSessionId)
		if err != nil {
			return nil, err
		}
		if session != nil && session.UserId == user.Id {
			return session, nil
		}
	}
	return uow.ChatSessionRepository().FindLatestByUserId(ctx, user.Id)
}

func (s *chatService) persist(ctx context.Context, x *exchange, reply string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	now := s.now()
	err := uow.ChatMessageRepository().Append(ctx, x.session.Id, []*entity.ChatMessage{
		{Role: entity.ChatRoleUser, Content: x.message, CreatedAt: x.receivedAt},
		{Role: entity.ChatRoleAssistant, Content: reply, CreatedAt: now},
	})
	if err != nil {
		return err
	}

	x.session.UpdatedAt = now
	if err := uow.ChatSessionRepository().Update(ctx, x.session); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *chatService) History(ctx context.Context, userID uuid.UUID) ([]dto.ChatTurn, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized(constant.MsgTokenMalfunction)
	}

	session, err := s.currentSession(ctx, uow, user)
	if err != nil {
		return nil, err
	}
	turns := []dto.ChatTurn{}
	if session == nil {
		return turns, nil
	}

	messages, err := uow.ChatMessageRepository().FindBySessionId(ctx, session.Id)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		turns = append(turns, dto.ChatTurn{Role: string(m.Role), Content: m.Content})
	}
	return turns, nil
}

func (s *chatService) Clear(ctx context.Context, userID uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindByIdForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.Unauthorized(constant.MsgTokenMalfunction)
	}

	session, err := s.currentSession(ctx, uow, user)
	if err != nil {
		return err
	}
	if session == nil {
		return uow.Commit()
	}

	deleted, err := uow.ChatMessageRepository().DeleteBySessionId(ctx, session.Id)
	if err != nil {
		return err
	}
	session.Title = entity.DefaultChatTitle
	session.UpdatedAt = s.now()
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.afterWrite(ctx, userID, "cleared", events.New(events.ChatHistoryCleared, map[string]interface{}{
		"user_id":          userID.String(),
		"chat_session_id":  session.Id.String(),
		"deleted_messages": deleted,
	}))
	return nil
}

func (s *chatService) afterWrite(ctx context.Context, userID uuid.UUID, reason string, event events.Event) {
	if s.notifier != nil {
		s.notifier.NotifyUser(ctx, userID, constant.EventChatSync, dto.ChatSyncPayload{Reason: reason})
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("CHAT", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err,
		})
	}
}

// MakeTitle is the first TitleMaxRunes characters of message plus a suffix.
func MakeTitle(message string) string {
	runes := []rune(message)
	if len(runes) > constant.TitleMaxRunes {
		runes = runes[:constant.TitleMaxRunes]
	}
	return string(runes) + constant.TitleSuffix
}

// BuildContext assembles the provider input: system instruction, prior
// turns oldest first, then the new user message. recent may arrive in any
// order.
func BuildContext(recent []*entity.ChatMessage, message string) []llm.Message {
	ordered := slices.Clone(recent)
	slices.SortStableFunc(ordered, func(a, b *entity.ChatMessage) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})

	history := make([]llm.Message, 0, len(ordered)+2)
	history = append(history, llm.Message{Role: string(entity.ChatRoleSystem), Content: constant.SystemPrompt})
	for _, m := range ordered {
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	history = append(history, llm.Message{Role: string(entity.ChatRoleUser), Content: message})
	return history
}
