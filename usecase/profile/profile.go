package profile

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/api/transport"
	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/usecase"
)

// ImageField is the multipart part name for the profile picture.
const ImageField = "profileImage"

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

// GetUserProfile fetches the signed-in user's profile from the backend.
func (uc *UseCase) GetUserProfile(ctx context.Context) (*domain.User, error) {
	var raw json.RawMessage
	if err := uc.api.Get(ctx, transport.PathUserProfile, &raw); err != nil {
		return nil, err
	}
	user, _, err := transport.DecodeUser(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid response from server", err)
	}
	return user, nil
}

// UpdateUserProfile sends the edit as a multipart form on the upload path and
// replaces the session record with the user the backend returns.
func (uc *UseCase) UpdateUserProfile(ctx context.Context, update transport.ProfileUpdate, progress client.ProgressFunc) (*domain.User, error) {
	current, err := uc.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !current.IsSignedIn() {
		return nil, domain.ErrNotSignedIn
	}

	form := &client.Multipart{Fields: update.Fields()}
	if img := update.Image; img != nil && img.Content != nil {
		form.AddFile(ImageField, img.Name, img.ContentType, img.Content)
	}

	var raw json.RawMessage
	if err := uc.api.Upload(ctx, fasthttp.MethodPut, transport.PathProfileEdit, form, progress, &raw); err != nil {
		return nil, err
	}

	returned, _, decodeErr := transport.DecodeUser(raw)
	if decodeErr != nil {
		uc.logger.Debug("profile edit returned no user, applying locally", zap.Error(decodeErr))
	}

	updated, err := uc.sessions.Update(ctx, func(stored *domain.User) (*domain.User, error) {
		if stored == nil {
			return nil, domain.ErrNotSignedIn
		}
		if returned == nil {
			stored.IsProfileComplete = true
			if update.Name != "" {
				stored.Name = update.Name
			}
			return stored, nil
		}
		next := returned.Clone()
		if next.Token == "" {
			next.Token = stored.Token
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("profile updated", zap.String("user_id", updated.ID), zap.Bool("image", len(form.Files) > 0))
	return updated, nil
}
