// Package main is a terminal client: it logs in to osu! through the browser
// and prints the user's profile, rank history and best scores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-training/osu-companion/pkg/config"
	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/dispatch"
	"github.com/go-training/osu-companion/pkg/logger"
	"github.com/go-training/osu-companion/pkg/session"

	"github.com/common-nighthawk/go-figure"
	"golang.org/x/term"
)

// app holds the presentation state. Its fields are only touched on the loop
// goroutine.
type app struct {
	out     io.Writer
	width   int
	loop    *dispatch.Loop
	manager *session.Manager
	mode    string
	mods    []string
	user    string

	pending int
	failed  bool
}

func main() {
	var configPath string
	var noBrowser bool
	var mode string
	var mods string
	var user string
	var logLevel string
	var logFile string
	flag.StringVar(&configPath, "config", "", "config file (JSON or YAML); defaults to ./config.json when present")
	flag.BoolVar(&noBrowser, "no-browser", false, "print the login URL instead of opening a browser")
	flag.StringVar(&mode, "mode", "osu", "game mode for best scores: osu, taiko, fruits or mania")
	flag.StringVar(&mods, "mods", "", "comma-separated mods to filter best scores by, e.g. HD,DT")
	flag.StringVar(&user, "user", "", "also look up this player after logging in")
	flag.StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.StringVar(&logFile, "log-file", "", "write logs to this rotating file instead of stderr")
	flag.Parse()

	logger.NewWithOptions(logger.Options{Level: logLevel, File: logFile})

	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	manager, err := session.NewManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		out:     os.Stdout,
		width:   terminalWidth(),
		loop:    dispatch.New(8),
		manager: manager,
		mode:    mode,
		mods:    splitList(mods),
		user:    user,
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		figure.NewFigure("osu!", "", true).Print()
		fmt.Println()
	}

	a.login(core.WithRequestID(ctx), noBrowser)

	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, dispatch.ErrStopped) {
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(130)
	}
	if a.failed {
		os.Exit(1)
	}
}

func (a *app) login(ctx context.Context, noBrowser bool) {
	fmt.Fprintln(a.out, "Logging in...")
	a.pending++
	dispatch.Go(ctx, a.loop, func(ctx context.Context) (core.Session, error) {
		return a.manager.Login(ctx, session.LoginOptions{NoBrowser: noBrowser, Out: os.Stderr})
	}, func(s core.Session, err error) {
		defer a.finish()
		if err != nil {
			a.fail("Login failed", err)
			return
		}
		fmt.Fprintf(a.out, "Logged in as %s.\n\n", s.Username)
		a.fetchAll(ctx)
	})
}

func (a *app) fetchAll(ctx context.Context) {
	a.pending++
	dispatch.Go(ctx, a.loop, a.manager.FetchProfile, func(p *core.Profile, err error) {
		defer a.finish()
		if err != nil {
			a.fail("Could not load profile", err)
			return
		}
		renderProfile(a.out, p, a.width)
	})

	a.pending++
	dispatch.Go(ctx, a.loop, func(ctx context.Context) ([]core.ScoreEntry, error) {
		return a.manager.FetchBestScores(ctx, a.mode, a.mods)
	}, func(scores []core.ScoreEntry, err error) {
		defer a.finish()
		if err != nil {
			a.fail("Could not load best scores", err)
			return
		}
		renderScores(a.out, scores, a.width)
	})

	if a.user == "" {
		return
	}
	a.pending++
	dispatch.Go(ctx, a.loop, func(ctx context.Context) (*core.Profile, error) {
		return a.manager.LookupUser(ctx, a.user, a.mode)
	}, func(p *core.Profile, err error) {
		defer a.finish()
		if err != nil {
			a.fail("User lookup failed", err)
			return
		}
		renderProfile(a.out, p, a.width)
	})
}

func (a *app) fail(what string, err error) {
	a.failed = true
	slog.Debug(what, "error", err)
	fmt.Fprintf(a.out, "%s: %v\n", what, err)
}

// finish stops the loop once every outstanding request has been rendered.
func (a *app) finish() {
	a.pending--
	if a.pending == 0 {
		a.loop.Stop()
	}
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
