// Package clienttest runs an in-memory fake backend for access layer tests.
package clienttest

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// BaseURL is the address clients should use; the host is never resolved.
const BaseURL = "http://backend.test/api/v1"

// Captured is a copy of a request the backend received.
type Captured struct {
	Method      string
	Path        string
	ContentType string
	Headers     map[string]string
	Body        []byte
	Form        map[string]string
	Files       map[string][]byte
}

// Header returns the captured header value, or "" when absent. Lookup ignores case.
func (c Captured) Header(name string) string {
	return c.Headers[strings.ToLower(name)]
}

// HasHeader reports whether the header was sent at all.
func (c Captured) HasHeader(name string) bool {
	_, ok := c.Headers[strings.ToLower(name)]
	return ok
}

// Backend serves routes registered by the test over an in-memory listener.
type Backend struct {
	ln     *fasthttputil.InmemoryListener
	server *fasthttp.Server

	mu       sync.Mutex
	requests []Captured
}

// New starts a backend whose routes are registered by setup. Routes are
// prefixed with /api/v1.
func New(t testing.TB, setup func(r *router.Group)) *Backend {
	t.Helper()

	r := router.New()
	setup(r.Group("/api/v1"))

	b := &Backend{ln: fasthttputil.NewInmemoryListener()}
	b.server = &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			b.capture(ctx)
			r.Handler(ctx)
		},
	}
	go b.server.Serve(b.ln) //nolint:errcheck

	t.Cleanup(func() {
		_ = b.ln.Close()
	})
	return b
}

// HTTPClient returns a fasthttp client dialing this backend.
func (b *Backend) HTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return b.ln.Dial()
		},
	}
}

// Requests returns every captured request in arrival order.
func (b *Backend) Requests() []Captured {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Captured(nil), b.requests...)
}

// Last returns the most recent captured request.
func (b *Backend) Last() Captured {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return Captured{}
	}
	return b.requests[len(b.requests)-1]
}

func (b *Backend) capture(ctx *fasthttp.RequestCtx) {
	c := Captured{
		Method:      string(ctx.Method()),
		Path:        string(ctx.Path()),
		ContentType: string(ctx.Request.Header.ContentType()),
		Headers:     make(map[string]string),
		Body:        append([]byte(nil), ctx.PostBody()...),
	}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		c.Headers[strings.ToLower(string(k))] = string(v)
	})
	if form, err := ctx.MultipartForm(); err == nil {
		c.Form = make(map[string]string)
		c.Files = make(map[string][]byte)
		for k, vs := range form.Value {
			if len(vs) > 0 {
				c.Form[k] = vs[0]
			}
		}
		for k, fhs := range form.File {
			if len(fhs) == 0 {
				continue
			}
			if data, err := readFileHeader(fhs[0]); err == nil {
				c.Files[k] = data
			}
		}
	}

	b.mu.Lock()
	b.requests = append(b.requests, c)
	b.mu.Unlock()
}

// JSON writes payload with status.
func JSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

// Respond returns a handler that always writes payload with status.
func Respond(status int, payload any) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		JSON(ctx, status, payload)
	}
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
