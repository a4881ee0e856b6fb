package service

import (
	"context"
	"errors"
	"strings"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/entity"
	"chatedge-be/internal/pkg/apperror"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/internal/pkg/token"
	"chatedge-be/internal/repository/contract"
	"chatedge-be/internal/repository/unitofwork"
	"chatedge-be/pkg/events"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

type IAuthService interface {
	Register(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResult, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResult, error)
	// Verify resolves a raw token to its user. Every failure is Unauthorized.
	Verify(ctx context.Context, raw string) (*dto.Principal, error)
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	tokens         *token.Manager
	eventPublisher events.Publisher
	logger         logger.ILogger
}

func NewAuthService(uowFactory unitofwork.RepositoryFactory, tokens *token.Manager, eventPublisher events.Publisher, log logger.ILogger) IAuthService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &authService{
		uowFactory:     uowFactory,
		tokens:         tokens,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *authService) Register(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict(constant.MsgUserExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, contract.ErrDuplicateKey) {
			return nil, apperror.Conflict(constant.MsgUserExists)
		}
		return nil, err
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.UserRegistered, map[string]interface{}{
		"user_id": user.Id.String(),
		"email":   user.Email,
	}))
	return result, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized(constant.MsgUserNotRegistered)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Forbidden(constant.MsgIncorrectPassword)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.UserLogin, map[string]interface{}{
		"user_id": user.Id.String(),
	}))
	return result, nil
}

func (s *authService) Verify(ctx context.Context, raw string) (*dto.Principal, error) {
	identity, err := s.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrMissing) {
			return nil, apperror.Unauthorized(constant.MsgTokenNotReceived)
		}
		return nil, apperror.Wrap(apperror.ErrUnauthorized, constant.MsgTokenExpired, err)
	}

	user, err := s.uowFactory.NewUnitOfWork(ctx).UserRepository().FindById(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized(constant.MsgTokenMalfunction)
	}
	if !strings.EqualFold(user.Email, identity.Email) {
		return nil, apperror.Unauthorized(constant.MsgPermissionMismatch)
	}

	return &dto.Principal{UserID: user.Id, Name: user.Name, Email: user.Email}, nil
}

func (s *authService) issue(user *entity.User) (*dto.AuthResult, error) {
	signed, err := s.tokens.Issue(token.Identity{UserID: user.Id, Email: user.Email})
	if err != nil {
		return nil, err
	}
	return &dto.AuthResult{
		Token:   signed,
		Profile: dto.UserProfile{Name: user.Name, Email: user.Email},
	}, nil
}

// publish is best effort; a broker outage never fails the request.
func (s *authService) publish(ctx context.Context, event events.Event) {
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("AUTH", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err,
		})
	}
}
