// Package session owns the single authenticated session of the process and the
// login attempt that produces it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/go-training/osu-companion/pkg/config"
	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/osu"
)

var tracer = otel.Tracer("github.com/go-training/osu-companion/pkg/session")

// Phase is the state of the current login attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingRedirect
	PhaseExchangingToken
	PhaseFetchingProfile
	PhaseAuthenticated
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingRedirect:
		return "awaiting_redirect"
	case PhaseExchangingToken:
		return "exchanging_token"
	case PhaseFetchingProfile:
		return "fetching_profile"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight reports whether a login attempt is running in this phase.
func (p Phase) InFlight() bool {
	return p == PhaseAwaitingRedirect || p == PhaseExchangingToken || p == PhaseFetchingProfile
}

// Manager holds the active session and drives the login state machine.
// It is safe for concurrent use.
type Manager struct {
	cfg    config.Config
	client *osu.Client
	now    func() time.Time
	opener func(string) error

	mu      sync.RWMutex
	session core.Session

	loginMu sync.Mutex
	phase   Phase
	lastErr error
	attempt uint64
	pending *core.AuthorizationRequest
}

// Option configures a Manager.
type Option func(*Manager)

// WithClient replaces the provider client built from the config.
func WithClient(c *osu.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.client = c
		}
	}
}

// WithClock sets the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithOpener sets how Login opens the consent page.
func WithOpener(open func(string) error) Option {
	return func(m *Manager) {
		if open != nil {
			m.opener = open
		}
	}
}

// NewManager validates cfg and returns an idle manager.
func NewManager(cfg config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:    cfg,
		now:    time.Now,
		opener: openBrowser,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = osu.NewClient(cfg.BaseURL, osu.WithRequestTimeout(cfg.RequestTimeout), osu.WithClock(m.now))
	}
	return m, nil
}

// BeginLogin starts an attempt and returns the consent page URL. It performs
// no I/O and fails with core.ErrLoginInProgress while another attempt runs.
func (m *Manager) BeginLogin() (core.AuthorizationURL, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	if m.phase.InFlight() {
		return "", core.ErrLoginInProgress
	}

	req := &core.AuthorizationRequest{
		ClientID:     m.cfg.ClientID,
		RedirectURI:  m.cfg.RedirectURI,
		Scope:        m.cfg.Scope,
		ResponseType: "code",
		State:        core.NewState(),
	}
	m.attempt++
	m.pending = req
	m.phase = PhaseAwaitingRedirect
	m.lastErr = nil
	return m.client.AuthorizeURL(*req), nil
}

// pendingState returns the state value of the running attempt.
func (m *Manager) pendingState() string {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if m.pending == nil {
		return ""
	}
	return m.pending.State
}

// CompleteLogin consumes the redirect result of the attempt started by
// BeginLogin: it exchanges the code, fetches the profile and stores the new
// session. On failure the previous session, if any, is left in place.
func (m *Manager) CompleteLogin(ctx context.Context, res core.AuthorizationResult) (core.Session, error) {
	ctx, span := tracer.Start(ctx, "session.complete_login")
	defer span.End()
	log := core.LoggerFromCtx(ctx)

	// The phase check and the move out of AwaitingRedirect share one critical
	// section so a redirect result is consumed at most once.
	m.loginMu.Lock()
	if m.phase != PhaseAwaitingRedirect || m.pending == nil {
		m.loginMu.Unlock()
		return core.Session{}, core.ErrNoLoginInProgress
	}
	req := *m.pending
	attempt := m.attempt
	var rejected error
	switch {
	case res.Err != nil:
		rejected = redirectError(res.Err)
	case res.Code == "":
		rejected = core.Denied("no code received")
	}
	if rejected != nil {
		m.phase = PhaseFailed
		m.pending = nil
		m.lastErr = rejected
	} else {
		m.phase = PhaseExchangingToken
	}
	m.loginMu.Unlock()

	if rejected != nil {
		return core.Session{}, rejected
	}

	token, err := m.client.ExchangeCode(ctx, osu.Credentials{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
	}, res.Code, req.RedirectURI, req.Scope)
	if err != nil {
		return core.Session{}, m.fail(attempt, err)
	}

	if err := m.advance(attempt, PhaseFetchingProfile); err != nil {
		return core.Session{}, err
	}
	profile, err := m.client.Me(ctx, token.AccessToken)
	if err != nil {
		return core.Session{}, m.fail(attempt, profileError(err))
	}

	s := core.Session{
		AccessToken: token.AccessToken,
		UserID:      profile.ID,
		Username:    profile.Username,
		ExpiresAt:   token.Expiry,
	}

	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if m.attempt != attempt {
		return core.Session{}, &core.Error{Kind: core.ErrNoLoginInProgress, Reason: "login was cancelled"}
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	m.phase = PhaseAuthenticated
	m.pending = nil
	m.lastErr = nil

	log.Info("login succeeded", "user_id", s.UserID, "username", s.Username, "token", s.MaskedToken())
	return s, nil
}

// CancelLogin abandons the running attempt. It is a no-op when none runs.
func (m *Manager) CancelLogin(reason error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if !m.phase.InFlight() {
		return
	}
	if reason == nil {
		reason = core.Denied("login cancelled")
	}
	m.attempt++
	m.pending = nil
	m.phase = PhaseFailed
	m.lastErr = reason
}

// Logout clears the session. Calling it without a session is fine.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.session = core.Session{}
	m.mu.Unlock()

	m.loginMu.Lock()
	if !m.phase.InFlight() {
		m.phase = PhaseIdle
		m.lastErr = nil
	}
	m.loginMu.Unlock()
}

// Session returns the active, unexpired session.
func (m *Manager) Session() (core.Session, bool) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	if s.IsZero() || s.Expired(m.now()) {
		return core.Session{}, false
	}
	return s, true
}

// Phase returns the state of the latest login attempt.
func (m *Manager) Phase() Phase {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	return m.phase
}

// LastError returns why the latest attempt failed, or nil.
func (m *Manager) LastError() error {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	return m.lastErr
}

// FetchProfile returns the profile of the logged-in user.
func (m *Manager) FetchProfile(ctx context.Context) (*core.Profile, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.client.Me(ctx, s.AccessToken)
}

// FetchBestScores returns the logged-in user's best plays in mode, optionally
// filtered by mod acronyms.
func (m *Manager) FetchBestScores(ctx context.Context, mode string, mods []string) ([]core.ScoreEntry, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.client.BestScores(ctx, s.AccessToken, osu.BestScoresRequest{
		UserID: s.UserID,
		Mode:   mode,
		Mods:   mods,
	})
}

// LookupUser returns another player's profile.
func (m *Manager) LookupUser(ctx context.Context, username, mode string) (*core.Profile, error) {
	if strings.TrimSpace(username) == "" {
		return nil, core.InvalidInput("username is empty")
	}
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.client.User(ctx, s.AccessToken, username, mode)
}

func (m *Manager) current() (core.Session, error) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	if s.IsZero() {
		return core.Session{}, core.NotAuthenticated("no active session")
	}
	if s.Expired(m.now()) {
		return core.Session{}, core.NotAuthenticated("session expired")
	}
	return s, nil
}

// advance moves a still-current attempt to the next phase.
func (m *Manager) advance(attempt uint64, next Phase) error {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if m.attempt != attempt {
		return &core.Error{Kind: core.ErrNoLoginInProgress, Reason: "login was cancelled"}
	}
	m.phase = next
	return nil
}

// fail records err for a still-current attempt and returns it.
func (m *Manager) fail(attempt uint64, err error) error {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if m.attempt == attempt {
		m.phase = PhaseFailed
		m.pending = nil
		m.lastErr = err
	}
	return err
}

func redirectError(err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		return err
	}
	return &core.Error{Kind: core.ErrDenied, Reason: "login aborted", Err: err}
}

// profileError reports a non-2xx profile answer as ErrProfileFetchFailed.
func profileError(err error) error {
	var e *core.Error
	if !errors.As(err, &e) || !errors.Is(err, core.ErrAPI) {
		return err
	}
	return &core.Error{Kind: core.ErrProfileFetchFailed, Status: e.Status, Body: e.Body, Reason: e.Reason, Err: e.Err}
}
