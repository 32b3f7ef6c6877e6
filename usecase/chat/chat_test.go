package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/api/client/clienttest"
	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/infrastructure/boltdb"
	boltRepo "github.com/fastygo/companion/repository/bolt"
	"github.com/fastygo/companion/usecase/session"
)

func newService(t *testing.T, timeout time.Duration, setup func(r *router.Group)) (*Service, *session.Store, *clienttest.Backend) {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "companion.db"), boltRepo.SessionBucket)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := session.New(boltRepo.NewSessionRepository(db, "user"), nil)
	backend := clienttest.New(t, setup)
	api, err := client.New(client.Config{
		BaseURL:        clienttest.BaseURL,
		RequestTimeout: timeout,
		HTTPClient:     backend.HTTPClient(),
		Identity:       sessions,
	}, nil)
	require.NoError(t, err)
	return New(api, sessions, nil), sessions, backend
}

func TestSendMessage_Success(t *testing.T) {
	svc, sessions, backend := newService(t, 2*time.Second, func(r *router.Group) {
		r.POST("/chat/send", clienttest.Respond(fasthttp.StatusOK, map[string]any{
			"botResponse": "How are you feeling today?",
		}))
	})
	require.NoError(t, sessions.Save(context.Background(), &domain.User{ID: "u-1"}))

	result := svc.SendMessage(context.Background(), " hi ")
	assert.True(t, result.Success)
	assert.Equal(t, "How are you feeling today?", result.BotResponse)
	assert.Empty(t, result.Error)

	req := backend.Last()
	assert.JSONEq(t, `{"message":"hi","userId":"u-1"}`, string(req.Body))
	assert.Equal(t, "u-1", req.Header(client.HeaderUserID))
}

func TestSendMessage_AlternateReplyField(t *testing.T) {
	svc, _, _ := newService(t, 2*time.Second, func(r *router.Group) {
		r.POST("/chat/send", clienttest.Respond(fasthttp.StatusOK, map[string]any{"response": "hello"}))
	})

	result := svc.SendMessage(context.Background(), "hi")
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.BotResponse)
}

func TestSendMessage_SoftFailures(t *testing.T) {
	tests := []struct {
		name      string
		timeout   time.Duration
		handler   fasthttp.RequestHandler
		message   string
		wantError string
	}{
		{
			name:      "server error",
			timeout:   2 * time.Second,
			handler:   clienttest.Respond(fasthttp.StatusInternalServerError, map[string]any{"error": "model unavailable"}),
			message:   "hi",
			wantError: "model unavailable",
		},
		{
			name:    "no response",
			timeout: 50 * time.Millisecond,
			handler: func(ctx *fasthttp.RequestCtx) {
				time.Sleep(300 * time.Millisecond)
				clienttest.JSON(ctx, fasthttp.StatusOK, map[string]any{"botResponse": "late"})
			},
			message:   "hi",
			wantError: domain.MsgNoResponse,
		},
		{
			name:      "empty reply",
			timeout:   2 * time.Second,
			handler:   clienttest.Respond(fasthttp.StatusOK, map[string]any{}),
			message:   "hi",
			wantError: "empty response from server",
		},
		{
			name:      "blank message",
			timeout:   2 * time.Second,
			handler:   clienttest.Respond(fasthttp.StatusOK, map[string]any{"botResponse": "unused"}),
			message:   "   ",
			wantError: "message is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t, tt.timeout, func(r *router.Group) {
				r.POST("/chat/send", tt.handler)
			})

			result := svc.SendMessage(context.Background(), tt.message)
			assert.False(t, result.Success)
			assert.Equal(t, domain.FallbackBotResponse, result.BotResponse)
			assert.Equal(t, tt.wantError, result.Error)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	svc, _, backend := newService(t, 2*time.Second, func(r *router.Group) {
		r.GET("/health", clienttest.Respond(fasthttp.StatusOK, map[string]any{"status": "healthy"}))
	})

	status, err := svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy())
	assert.Equal(t, "GET", backend.Last().Method)
	assert.Equal(t, "/api/v1/health", backend.Last().Path)
}

func TestHealthCheck_EmptyBody(t *testing.T) {
	svc, _, _ := newService(t, 2*time.Second, func(r *router.Group) {
		r.GET("/health", func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusNoContent) })
	})

	status, err := svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
}

func TestHealthCheck_Down(t *testing.T) {
	svc, _, _ := newService(t, 2*time.Second, func(r *router.Group) {
		r.GET("/health", clienttest.Respond(fasthttp.StatusServiceUnavailable, map[string]any{"detail": "db down"}))
	})

	_, err := svc.HealthCheck(context.Background())
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeServer))
	assert.Equal(t, "db down", domain.Message(err))
}
