package chat

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/companion/api/transport"
	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/usecase"
)

// Service talks to the companion chat. SendMessage never fails outright; the
// caller always gets something to show.
type Service struct {
	api      usecase.Backend
	sessions usecase.SessionStore
	logger   *zap.Logger
}

func New(api usecase.Backend, sessions usecase.SessionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:      api,
		sessions: sessions,
		logger:   logger,
	}
}

// SendMessage posts one chat turn. Any failure is folded into a result with
// Success false and the fallback reply.
func (s *Service) SendMessage(ctx context.Context, message string) transport.ChatResult {
	message = strings.TrimSpace(message)
	if message == "" {
		return fallback("message is required")
	}

	req := transport.ChatRequest{Message: message}
	if s.sessions != nil {
		if user := s.sessions.Current(ctx); user.IsSignedIn() {
			req.UserID = user.ID
		}
	}

	var raw json.RawMessage
	if err := s.api.Post(ctx, transport.PathChatSend, req, &raw); err != nil {
		s.logger.Warn("chat send failed", zap.Error(err))
		return fallback(domain.Message(err))
	}

	var reply transport.ChatReply
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reply); err != nil {
			s.logger.Warn("chat reply not understood", zap.Error(err))
			return fallback("invalid response from server")
		}
	}
	text := reply.Text()
	if text == "" {
		return fallback("empty response from server")
	}
	return transport.ChatResult{Success: true, BotResponse: text}
}

// HealthCheck reads the backend health endpoint. A 2xx without a status body
// counts as ok.
func (s *Service) HealthCheck(ctx context.Context) (transport.HealthStatus, error) {
	var status transport.HealthStatus
	if err := s.api.Get(ctx, transport.PathHealth, &status); err != nil {
		return transport.HealthStatus{}, err
	}
	if status.Status == "" {
		status.Status = "ok"
	}
	return status, nil
}

func fallback(reason string) transport.ChatResult {
	return transport.ChatResult{
		Success:     false,
		BotResponse: domain.FallbackBotResponse,
		Error:       reason,
	}
}
