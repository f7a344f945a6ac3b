// Package main runs an MCP server that logs in to osu! at start-up and exposes
// the session's profile and score queries as tools, over stdio or streamable
// HTTP. The osu_login tool starts a new login after logout or expiry.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-training/osu-companion/pkg/config"
	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/logger"
	"github.com/go-training/osu-companion/pkg/operation"
	"github.com/go-training/osu-companion/pkg/session"

	"github.com/appleboy/graceful"
	sloggin "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/browser"
)

const version = "1.0.0"

// heartbeatInterval keeps idle GET streams alive through proxies.
const heartbeatInterval = 30 * time.Second

// MCPServer wraps the underlying MCP server instance.
type MCPServer struct {
	server  *server.MCPServer
	manager *session.Manager
}

// NewMCPServer creates an MCP server whose tools read from manager.
func NewMCPServer(manager *session.Manager) *MCPServer {
	return &MCPServer{
		server:  operation.NewServer("osu-companion", version),
		manager: manager,
	}
}

func (s *MCPServer) withContext(ctx context.Context) context.Context {
	ctx = core.WithSession(ctx, s.manager)
	return core.WithRequestID(ctx)
}

// ServeHTTP returns a streamable HTTP server that injects the session manager
// into every request context.
func (s *MCPServer) ServeHTTP() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHeartbeatInterval(heartbeatInterval),
		server.WithHTTPContextFunc(func(ctx context.Context, _ *http.Request) context.Context {
			return s.withContext(ctx)
		}),
	)
}

// ServeStdio serves the MCP server over stdin/stdout.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.server, server.WithStdioContextFunc(s.withContext))
}

func main() {
	var transport string
	var addr string
	var configPath string
	var noBrowser bool
	var logLevel string
	var logFile string
	flag.StringVar(&addr, "addr", ":8080", "address to listen on")
	flag.StringVar(&transport, "t", "stdio", "Transport type (stdio or http)")
	flag.StringVar(
		&transport,
		"transport",
		"stdio",
		"Transport type (stdio or http)",
	)
	flag.StringVar(&configPath, "config", "", "config file (JSON or YAML); defaults to ./config.json when present")
	flag.BoolVar(&noBrowser, "no-browser", false, "print the login URL instead of opening a browser")
	flag.StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR). Defaults to DEBUG in development, INFO in production")
	flag.StringVar(&logFile, "log-file", "", "write logs to this rotating file instead of stderr")
	flag.Parse()

	logger.NewWithOptions(logger.Options{Level: logLevel, File: logFile})
	// stdout carries the stdio transport
	browser.Stdout = os.Stderr

	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Debug("Configuration loaded", "config", cfg)

	manager, err := session.NewManager(cfg)
	if err != nil {
		slog.Error("Failed to create session manager", "error", err)
		os.Exit(1)
	}

	s, err := manager.Login(core.WithRequestID(context.Background()), session.LoginOptions{
		NoBrowser: noBrowser,
		Out:       os.Stderr,
	})
	if err != nil {
		slog.Error("Login failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Logged in", "username", s.Username, "user_id", s.UserID)

	mcpServer := NewMCPServer(manager)

	switch transport {
	case "stdio":
		if err := mcpServer.ServeStdio(); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	case "http":
		if err := serveHTTP(addr, mcpServer); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid transport type", "transport", transport)
		os.Exit(1)
	}
}

func serveHTTP(addr string, mcpServer *MCPServer) error {
	router := gin.New()
	router.Use(sloggin.SetLogger(), gin.Recovery())
	handler := gin.WrapH(mcpServer.ServeHTTP())
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		router.Handle(method, "/mcp", handler)
	}
	router.GET("/healthz", func(c *gin.Context) {
		_, ok := mcpServer.manager.Session()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "authenticated": ok})
	})

	srv := newHTTPServer(addr, router)

	m := graceful.NewManager()
	m.AddRunningJob(func(ctx context.Context) error {
		slog.Info("MCP HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	m.AddShutdownJob(func() error {
		slog.Info("Shutdown signal received, shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	<-m.Done()
	slog.Info("Server shutdown gracefully")
	return nil
}

// newHTTPServer has no write deadline: /mcp GET streams stay open for as long
// as the client listens, kept alive by heartbeats.
func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       2 * heartbeatInterval,
	}
}
