package session

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"
	"go.opentelemetry.io/otel/codes"

	"github.com/go-training/osu-companion/pkg/callback"
	"github.com/go-training/osu-companion/pkg/core"
)

// LoginOptions tune the interactive part of Login.
type LoginOptions struct {
	// NoBrowser prints the consent URL instead of opening it.
	NoBrowser bool
	// Out receives the printed URL. Defaults to os.Stderr.
	Out io.Writer
}

func openBrowser(u string) error {
	return browser.OpenURL(u)
}

// Login runs a full attempt: it starts the redirect listener, sends the user
// to the consent page, waits for the redirect and completes the login.
func (m *Manager) Login(ctx context.Context, opts LoginOptions) (core.Session, error) {
	ctx, span := tracer.Start(ctx, "session.login")
	defer span.End()
	log := core.LoggerFromCtx(ctx)

	authURL, l, err := m.listen()
	if err != nil {
		span.SetStatus(codes.Error, "listener failed")
		return core.Session{}, err
	}
	defer l.Close()

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.NoBrowser {
		fmt.Fprintf(out, "Open this URL in your browser to log in:\n\n  %s\n\n", authURL)
	} else if err := m.opener(authURL.String()); err != nil {
		log.Warn("could not open browser", "error", err)
		fmt.Fprintf(out, "Could not open a browser. Open this URL to log in:\n\n  %s\n\n", authURL)
	}
	log.Info("waiting for authorization", "redirect_uri", m.cfg.RedirectURI, "timeout", m.cfg.CallbackTimeout)

	s, err := m.CompleteLogin(ctx, l.Wait(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		log.Error("login failed", "error", err)
		return core.Session{}, err
	}
	return s, nil
}

// StartLogin begins an attempt and returns the consent page URL without
// waiting for the user. The redirect is awaited and the login completed in the
// background, bounded by the callback timeout; progress shows in Phase and
// LastError. Cancelling ctx after StartLogin returns does not stop the attempt.
func (m *Manager) StartLogin(ctx context.Context) (core.AuthorizationURL, error) {
	authURL, l, err := m.listen()
	if err != nil {
		return "", err
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, span := tracer.Start(ctx, "session.start_login")
		defer span.End()
		defer l.Close()

		if _, err := m.CompleteLogin(ctx, l.Wait(ctx)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "login failed")
			core.LoggerFromCtx(ctx).Error("login failed", "error", err)
		}
	}()
	return authURL, nil
}

// listen begins an attempt and starts its redirect listener. The attempt is
// cancelled when the listener cannot start.
func (m *Manager) listen() (core.AuthorizationURL, *callback.Listener, error) {
	authURL, err := m.BeginLogin()
	if err != nil {
		return "", nil, err
	}

	l, err := callback.New(m.cfg.RedirectURI,
		callback.WithState(m.pendingState()),
		callback.WithTimeout(m.cfg.CallbackTimeout),
	)
	if err == nil {
		err = l.Start()
	}
	if err != nil {
		m.CancelLogin(err)
		return "", nil, err
	}
	return authURL, l, nil
}
