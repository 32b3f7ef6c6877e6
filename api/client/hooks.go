package client

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/companion/domain"
)

// RequestHook runs on every outbound request before it is sent.
// A non-nil error aborts the request as a construction failure.
type RequestHook func(ctx context.Context, req *fasthttp.Request) error

// IdentitySource yields the signed-in user, or nil when signed out.
type IdentitySource interface {
	Current(ctx context.Context) *domain.User
}

// SessionHook reads the session once per request. A signed-in user adds the
// X-User-ID header; a non-expired token also adds a bearer Authorization header.
// Signed out, nothing is attached.
func SessionHook(src IdentitySource, now func() time.Time) RequestHook {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, req *fasthttp.Request) error {
		user := src.Current(ctx)
		if !user.IsSignedIn() {
			return nil
		}
		req.Header.Set(HeaderUserID, user.ID)
		if user.Token != "" && tokenUsable(user.Token, now()) {
			req.Header.Set(HeaderAuthorization, "Bearer "+user.Token)
		}
		return nil
	}
}

// tokenUsable reports whether a token should be sent. Opaque (non-JWT) tokens
// are always sent; JWTs are dropped once their exp claim has passed.
// The signature is the server's concern.
func tokenUsable(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	return claims.VerifyExpiresAt(now.Unix(), false)
}
