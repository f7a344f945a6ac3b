// Package callback runs the short-lived local HTTP endpoint that receives the
// OAuth redirect. It captures exactly one result and then shuts itself down.
package callback

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	sloggin "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/go-training/osu-companion/pkg/core"
)

// DefaultTimeout is how long Wait blocks for the browser redirect.
const DefaultTimeout = 120 * time.Second

const shutdownTimeout = 5 * time.Second

const (
	successPage = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>osu! login</title></head>` +
		`<body><h1>Login successful!</h1><p>You can close this window and return to the application.</p></body></html>`
	failurePage = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>osu! login</title></head>` +
		`<body><h1>Login failed</h1><p>%s</p></body></html>`
	gonePage = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>osu! login</title></head>` +
		`<body><h1>Already handled</h1><p>This login attempt has already been completed.</p></body></html>`
)

// Listener serves the redirect URI path until the first callback arrives.
type Listener struct {
	addr    string
	path    string
	state   string
	timeout time.Duration

	srv       *http.Server
	ln        net.Listener
	results   chan core.AuthorizationResult
	captured  atomic.Bool
	delivered chan struct{}
	done      chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	startErr  error
}

// Option configures a Listener.
type Option func(*Listener)

// WithState makes the listener reject callbacks whose state differs from expected.
func WithState(expected string) Option {
	return func(l *Listener) {
		l.state = expected
	}
}

// WithTimeout bounds how long Wait blocks.
func WithTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// New prepares a listener for the host, port and path of redirectURI.
func New(redirectURI string, opts ...Option) (*Listener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, core.ConfigInvalid("redirect_uri", "is not a URL: "+err.Error())
	}
	if u.Scheme != "http" || u.Hostname() == "" {
		return nil, core.ConfigInvalid("redirect_uri", "must be an absolute http:// URL with a host")
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	l := &Listener{
		addr:    net.JoinHostPort(u.Hostname(), port),
		path:    path,
		timeout: DefaultTimeout,
		results:   make(chan core.AuthorizationResult, 1),
		delivered: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Start binds the port and serves on a background goroutine.
func (l *Listener) Start() error {
	l.startOnce.Do(func() {
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			l.startErr = &core.Error{Kind: core.ErrConfigInvalid, Reason: "listen on " + l.addr, Err: err}
			return
		}
		l.ln = ln
		l.srv = &http.Server{
			Handler:           l.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		slog.Debug("callback listener started", "addr", ln.Addr().String(), "path", l.path)

		go func() {
			if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("callback listener stopped", "error", err)
				l.claim(core.ErrorResult(&core.Error{Kind: core.ErrDenied, Reason: "callback listener failed", Err: err}))
			}
		}()
	})
	return l.startErr
}

// Addr returns the bound address, or the configured one before Start.
func (l *Listener) Addr() string {
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.addr
}

// Results yields the single captured result. A result taken from here is no
// longer returned by Wait.
func (l *Listener) Results() <-chan core.AuthorizationResult {
	return l.results
}

// Wait blocks until the callback arrives, the timeout elapses, ctx is done or
// the listener is closed. The server is shut down before Wait returns.
func (l *Listener) Wait(ctx context.Context) core.AuthorizationResult {
	defer l.Close()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	var fallback core.AuthorizationResult
	select {
	case res := <-l.results:
		return res
	case <-timer.C:
		fallback = core.ErrorResult(&core.Error{Kind: core.ErrTimeout, Reason: "no redirect within " + l.timeout.String()})
	case <-ctx.Done():
		fallback = core.ErrorResult(ctx.Err())
	case <-l.done:
		fallback = core.ErrorResult(&core.Error{Kind: core.ErrDenied, Reason: "callback listener closed"})
	}

	if l.claimEmpty() {
		return fallback
	}
	// a callback won the race; its result is buffered unless Results took it
	<-l.delivered
	select {
	case res := <-l.results:
		return res
	default:
		return fallback
	}
}

// Close stops the server. It is safe to call more than once.
func (l *Listener) Close() {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.srv == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := l.srv.Shutdown(ctx); err != nil {
			slog.Error("callback listener shutdown", "error", err)
		}
	})
}

// claim stores res as the single result. It reports false when a result was
// already claimed.
func (l *Listener) claim(res core.AuthorizationResult) bool {
	if !l.captured.CompareAndSwap(false, true) {
		return false
	}
	l.results <- res
	close(l.delivered)
	return true
}

// claimEmpty marks the result slot as used without producing a result.
func (l *Listener) claimEmpty() bool {
	if !l.captured.CompareAndSwap(false, true) {
		return false
	}
	close(l.delivered)
	return true
}

func (l *Listener) router() *gin.Engine {
	r := gin.New()
	r.Use(sloggin.SetLogger(), gin.Recovery())
	r.GET(l.path, l.handleCallback)
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})
	return r
}

func (l *Listener) handleCallback(c *gin.Context) {
	res := l.parse(c)
	if !l.claim(res) {
		c.Data(http.StatusGone, "text/html; charset=utf-8", []byte(gonePage))
		return
	}

	if res.IsCode() {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(successPage))
	} else {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(failureHTML(res.Err)))
	}

	// Shutdown waits for this handler to return, so it cannot run inline.
	go l.Close()
}

func (l *Listener) parse(c *gin.Context) core.AuthorizationResult {
	if reason := c.Query("error"); reason != "" {
		if desc := c.Query("error_description"); desc != "" {
			reason += ": " + desc
		}
		return core.ErrorResult(core.Denied(reason))
	}
	if l.state != "" && c.Query("state") != l.state {
		return core.ErrorResult(core.Denied("state mismatch"))
	}
	code := c.Query("code")
	if code == "" {
		return core.ErrorResult(core.Denied("no code received"))
	}
	return core.CodeResult(code)
}

func failureHTML(err error) string {
	msg := "Authorization failed."
	if errors.Is(err, core.ErrDenied) {
		var e *core.Error
		if errors.As(err, &e) && e.Reason == "no code received" {
			msg = "No authorization code received."
		} else if e != nil && e.Reason != "" {
			msg = "Authorization denied: " + e.Reason
		}
	}
	return fmt.Sprintf(failurePage, html.EscapeString(msg))
}
