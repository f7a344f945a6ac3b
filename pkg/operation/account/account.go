// Package account provides MCP tools for starting, inspecting and ending the osu! session.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/operation/result"
)

// SessionTool defines the MCP tool for showing the current session.
var SessionTool = mcp.NewTool("osu_session",
	mcp.WithDescription("Show who is logged in, with the access token masked."),
)

// LogoutTool defines the MCP tool for ending the current session.
var LogoutTool = mcp.NewTool("osu_logout",
	mcp.WithDescription("Log out of osu! and forget the access token."),
)

// LoginTool defines the MCP tool for starting a new login.
var LoginTool = mcp.NewTool("osu_login",
	mcp.WithDescription("Start an osu! login. Returns the consent page URL the user must open; "+
		"the session becomes active once they approve. Use osu_session to check."),
)

// HandleLoginTool starts a login when no session is active and returns the
// consent page URL.
func HandleLoginTool(
	ctx context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	sp, err := core.SessionFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("missing session: %w", err)
	}

	if s, ok := sp.Session(); ok {
		return mcp.NewToolResultText(fmt.Sprintf("Already logged in as %s.", s.Username)), nil
	}

	authURL, err := sp.StartLogin(ctx)
	if errors.Is(err, core.ErrLoginInProgress) {
		return mcp.NewToolResultError("A login is already waiting for approval in the browser."), nil
	}
	if err != nil {
		logger.Warn("Could not start login", "error", err)
		return result.Error(ctx, err)
	}
	logger.Info("Login started")
	return mcp.NewToolResultText(fmt.Sprintf(
		"Open this URL in your browser to log in:\n\n%s\n\nThe session becomes active once you approve access.", authURL,
	)), nil
}

// HandleSessionTool describes the active session without revealing the token.
func HandleSessionTool(
	ctx context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	sp, err := core.SessionFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("missing session: %w", err)
	}

	s, ok := sp.Session()
	if !ok {
		return mcp.NewToolResultText("Not logged in."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Logged in as %s (id %d)\n", s.Username, s.UserID)
	fmt.Fprintf(&b, "Token: %s\n", s.MaskedToken())
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "Expires: %s\n", s.ExpiresAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// HandleLogoutTool clears the session. Logging out twice is not an error.
func HandleLogoutTool(
	ctx context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	sp, err := core.SessionFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("missing session: %w", err)
	}

	s, had := sp.Session()
	sp.Logout()
	if !had {
		return mcp.NewToolResultText("Not logged in."), nil
	}
	logger.Info("Logged out", "username", s.Username)
	return mcp.NewToolResultText(fmt.Sprintf("Logged out %s.", s.Username)), nil
}
