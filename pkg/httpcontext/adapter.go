package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/companion/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserAgent = "User-Agent"
)

// Adapter derives per-call contexts and stamps request metadata onto outbound requests.
type Adapter struct {
	timeout   time.Duration
	userAgent string
}

// NewAdapter constructs a new Adapter using the provided default timeout.
func NewAdapter(timeout time.Duration, userAgent string) *Adapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Timeout returns the default per-call timeout.
func (a *Adapter) Timeout() time.Duration {
	return a.timeout
}

// Attach creates a context bounded by timeout (or the adapter default) that carries a request ID.
// An existing request ID on parent is kept.
func (a *Adapter) Attach(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		timeout = a.timeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	if appLogger.RequestIDFromContext(ctx) == "" {
		ctx = appLogger.ContextWithRequestID(ctx, uuid.NewString())
	}
	return ctx, cancel
}

// Stamp writes the request ID and user agent carried by ctx onto req.
func (a *Adapter) Stamp(ctx context.Context, req *fasthttp.Request) {
	reqID := appLogger.RequestIDFromContext(ctx)
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, reqID)
	if a.userAgent != "" {
		req.Header.Set(HeaderUserAgent, a.userAgent)
	}
}
