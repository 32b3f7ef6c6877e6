package assessment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/api/transport"
	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/usecase"
)

// AudioField is the multipart part name for the recording.
const AudioField = "audio"

type UseCase struct {
	api      usecase.Backend
	sessions usecase.SessionStore
	buffer   usecase.OperationBuffer
	logger   *zap.Logger
}

// New builds the use case. buffer may be nil, which disables SubmitDeferred queuing.
func New(api usecase.Backend, sessions usecase.SessionStore, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		api:      api,
		sessions: sessions,
		buffer:   buffer,
		logger:   logger,
	}
}

// SubmitAssessment posts the answers and marks the session's assessment flag on success.
func (uc *UseCase) SubmitAssessment(ctx context.Context, answers map[string]any) (json.RawMessage, error) {
	req, err := uc.request(ctx, answers)
	if err != nil {
		return nil, err
	}
	return uc.submit(ctx, req)
}

// SubmitDeferred behaves like SubmitAssessment but queues the submission in the
// outbox when the backend did not answer. queued reports whether that happened.
func (uc *UseCase) SubmitDeferred(ctx context.Context, answers map[string]any) (result json.RawMessage, queued bool, err error) {
	req, err := uc.request(ctx, answers)
	if err != nil {
		return nil, false, err
	}
	result, err = uc.submit(ctx, req)
	if err == nil || uc.buffer == nil || !domain.IsDomainError(err, domain.ErrCodeNoResponse) {
		return result, false, err
	}

	payload, mErr := json.Marshal(req)
	if mErr != nil {
		return nil, false, err
	}
	if bErr := uc.buffer.Defer(ctx, usecase.OperationAssessment, req.UserID, payload); bErr != nil {
		uc.logger.Error("failed to queue assessment", zap.Error(bErr))
		return nil, false, err
	}
	uc.logger.Warn("assessment queued for retry", zap.String("user_id", req.UserID))
	return nil, true, nil
}

// Replay resends a queued assessment. It is the outbox handler for OperationAssessment.
// The request carries the current session's identity, so it is only sent while
// the user who queued it (or nobody, for anonymous items) is signed in.
// Otherwise it returns domain.ErrOwnerNotSignedIn without contacting the backend.
func (uc *UseCase) Replay(ctx context.Context, payload json.RawMessage) error {
	var req transport.AssessmentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	var current string
	if user := uc.sessions.Current(ctx); user.IsSignedIn() {
		current = user.ID
	}
	if current != req.UserID {
		uc.logger.Debug("holding queued assessment for another user",
			zap.String("owner", req.UserID),
			zap.Bool("signed_in", current != ""))
		return domain.ErrOwnerNotSignedIn
	}
	_, err := uc.submit(ctx, req)
	return err
}

// SubmitAudioAnalysis uploads a recording for analysis on the upload path.
func (uc *UseCase) SubmitAudioAnalysis(ctx context.Context, audio transport.Attachment, progress client.ProgressFunc) (json.RawMessage, error) {
	if audio.Content == nil {
		return nil, domain.NewError(domain.ErrCodeInvalid, "audio recording is required")
	}
	form := (&client.Multipart{}).AddFile(AudioField, audio.Name, audio.ContentType, audio.Content)
	if user := uc.sessions.Current(ctx); user.IsSignedIn() {
		form.AddField("userId", user.ID)
	}

	var result json.RawMessage
	if err := uc.api.Upload(ctx, fasthttp.MethodPost, transport.PathAudioAnalyze, form, progress, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *UseCase) request(ctx context.Context, answers map[string]any) (transport.AssessmentRequest, error) {
	a := domain.Assessment{Answers: answers}
	if err := a.Validate(); err != nil {
		return transport.AssessmentRequest{}, err
	}
	req := transport.AssessmentRequest{Answers: answers}
	if user := uc.sessions.Current(ctx); user.IsSignedIn() {
		req.UserID = user.ID
	}
	return req, nil
}

func (uc *UseCase) submit(ctx context.Context, req transport.AssessmentRequest) (json.RawMessage, error) {
	var result json.RawMessage
	if err := uc.api.Post(ctx, transport.PathAssessment, req, &result); err != nil {
		return nil, err
	}

	_, err := uc.sessions.Update(ctx, func(u *domain.User) (*domain.User, error) {
		if u == nil || u.ID != req.UserID {
			return nil, errSessionChanged
		}
		u.IsAssessmentComplete = true
		return u, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errSessionChanged):
		uc.logger.Debug("assessment submitted for a user who is no longer signed in", zap.String("user_id", req.UserID))
	default:
		// The backend has accepted the answers; a failed flag write is only logged.
		uc.logger.Warn("assessment accepted but session flag not saved",
			zap.String("user_id", req.UserID), zap.Error(err))
	}
	return result, nil
}

var errSessionChanged = domain.NewError(domain.ErrCodeNotFound, "session changed")
