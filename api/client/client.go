// Package client is the HTTP access layer for the companion backend.
//
// Every call goes through the same pipeline: request metadata and session
// hooks run first, the body is encoded as JSON or multipart, the request is
// sent through fasthttp, and failures are normalized into *domain.Error with
// one of three codes (SERVER, NO_RESPONSE, REQUEST).
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/pkg/httpcontext"
	appLogger "github.com/fastygo/companion/pkg/logger"
)

const (
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderUserID        = "X-User-ID"
	HeaderAuthorization = "Authorization"

	mimeJSON = "application/json"
)

// Doer sends a request and waits for the response until deadline.
// *fasthttp.Client and *fasthttp.HostClient satisfy it.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Config holds client configuration.
type Config struct {
	// BaseURL includes the versioned prefix, e.g. http://localhost:8000/api/v1.
	BaseURL        string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	UserAgent      string
	HTTPClient     Doer
	// Identity supplies the signed-in user for the session hook. Nil disables it.
	Identity IdentitySource
	// Hooks run after the built-in hooks, in order.
	Hooks []RequestHook
}

// Client issues requests against the backend and normalizes their results.
type Client struct {
	baseURL       string
	http          Doer
	adapter       *httpcontext.Adapter
	uploadTimeout time.Duration
	hooks         []RequestHook
	logger        *zap.Logger
}

// Request describes a single outbound call.
type Request struct {
	Method string
	Path   string
	// Body is encoded as JSON unless it is a *Multipart.
	Body    any
	Headers map[string]string
	// Timeout overrides the default per-call timeout when positive.
	Timeout  time.Duration
	Progress ProgressFunc
}

// New creates a new backend client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			NoDefaultUserAgentHeader: true,
			MaxIdleConnDuration:      30 * time.Second,
		}
	}

	hooks := []RequestHook{}
	if cfg.Identity != nil {
		hooks = append(hooks, SessionHook(cfg.Identity, time.Now))
	}
	hooks = append(hooks, cfg.Hooks...)

	return &Client{
		baseURL:       base,
		http:          httpClient,
		adapter:       httpcontext.NewAdapter(cfg.RequestTimeout, cfg.UserAgent),
		uploadTimeout: uploadTimeout,
		hooks:         hooks,
		logger:        logger,
	}, nil
}

// Get issues a GET and decodes the response into out when out is non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, Request{Method: fasthttp.MethodGet, Path: path}, out)
}

// Post issues a POST with body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: fasthttp.MethodPost, Path: path, Body: body}, out)
}

// Put issues a PUT with body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: fasthttp.MethodPut, Path: path, Body: body}, out)
}

// Upload sends a multipart form on the long-timeout path, reporting progress when set.
func (c *Client) Upload(ctx context.Context, method, path string, form *Multipart, progress ProgressFunc, out any) error {
	if form == nil {
		form = &Multipart{}
	}
	return c.call(ctx, Request{
		Method:   method,
		Path:     path,
		Body:     form,
		Timeout:  c.uploadTimeout,
		Progress: progress,
	}, out)
}

// Do executes r and returns the raw 2xx response body.
func (c *Client) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := c.adapter.Attach(ctx, r.Timeout)
	defer cancel()

	log := appLogger.WithRequestID(ctx, c.logger).With(
		zap.String("method", r.Method),
		zap.String("path", r.Path),
	)

	req, err := c.build(ctx, r)
	if err != nil {
		log.Warn("request construction failed", zap.Error(err))
		return nil, domain.RequestError(err)
	}

	start := time.Now()
	res := c.send(ctx, req)
	if res.err != nil {
		log.Warn("no response from backend", zap.Duration("elapsed", time.Since(start)), zap.Error(res.err))
		return nil, domain.NoResponseError(res.err)
	}

	log.Debug("backend responded", zap.Int("status", res.status), zap.Duration("elapsed", time.Since(start)))
	if res.status < 200 || res.status > 299 {
		return nil, domain.ServerError(res.status, extractMessage(res.body))
	}
	return res.body, nil
}

func (c *Client) call(ctx context.Context, r Request, out any) error {
	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) build(ctx context.Context, r Request) (*fasthttp.Request, error) {
	method := r.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	target := c.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	req.SetRequestURI(target)
	req.Header.SetMethod(method)
	req.Header.Set(HeaderAccept, mimeJSON)
	c.adapter.Stamp(ctx, req)

	_, multipartBody := r.Body.(*Multipart)
	for k, v := range r.Headers {
		if multipartBody && strings.EqualFold(k, HeaderContentType) {
			continue
		}
		// Identity headers come only from the session hook.
		if strings.EqualFold(k, HeaderUserID) || strings.EqualFold(k, HeaderAuthorization) {
			continue
		}
		req.Header.Set(k, v)
	}

	if err := encodeBody(req, r.Body, r.Progress); err != nil {
		fasthttp.ReleaseRequest(req)
		return nil, err
	}

	for _, hook := range c.hooks {
		if err := hook(ctx, req); err != nil {
			fasthttp.ReleaseRequest(req)
			return nil, err
		}
	}
	return req, nil
}

type result struct {
	status int
	body   []byte
	err    error
}

// send hands req to the transport and waits for the response or ctx.
// req is released by the sending goroutine.
func (c *Client) send(ctx context.Context, req *fasthttp.Request) result {
	if err := ctx.Err(); err != nil {
		fasthttp.ReleaseRequest(req)
		return result{err: err}
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.adapter.Timeout())
	}

	done := make(chan result, 1)
	go func() {
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
		}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			res.err = fmt.Errorf("%w: %v", ctx.Err(), res.err)
		}
		return res
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid response from server", err)
	}
	return nil
}
