package auth

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/companion/api/transport"
	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/usecase"
)

type UseCase struct {
	api      usecase.Backend
	sessions usecase.SessionStore
	logger   *zap.Logger
}

func New(api usecase.Backend, sessions usecase.SessionStore, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		api:      api,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginUser signs in and persists the returned user as the session record.
func (uc *UseCase) LoginUser(ctx context.Context, email, password string) (*domain.User, error) {
	req := transport.LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if req.Email == "" || req.Password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "email and password are required")
	}
	return uc.authenticate(ctx, transport.PathSignIn, req)
}

// SignupUser creates an account and persists the returned user as the session record.
func (uc *UseCase) SignupUser(ctx context.Context, name, email, password string) (*domain.User, error) {
	req := transport.SignupRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if req.Email == "" || req.Password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "email and password are required")
	}
	return uc.authenticate(ctx, transport.PathSignUp, req)
}

// Logout drops the session record.
func (uc *UseCase) Logout(ctx context.Context) error {
	if err := uc.sessions.Clear(ctx); err != nil {
		return err
	}
	uc.logger.Info("signed out")
	return nil
}

func (uc *UseCase) authenticate(ctx context.Context, path string, payload any) (*domain.User, error) {
	var raw json.RawMessage
	if err := uc.api.Post(ctx, path, payload, &raw); err != nil {
		return nil, err
	}

	user, token, err := transport.DecodeUser(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid response from server", err)
	}
	if token != "" {
		user.Token = token
	}
	if err := uc.sessions.Save(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("signed in", zap.String("user_id", user.ID), zap.String("next_step", user.NextStep()))
	return user.Clone(), nil
}
