// Package profile provides MCP tools for reading osu! player profiles.
package profile

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/operation/result"
)

// ProfileTool defines the MCP tool for the logged-in user's profile.
var ProfileTool = mcp.NewTool("osu_profile",
	mcp.WithDescription("Show the profile of the logged-in osu! user: rank, country, pp, play count, level and rank history."),
)

// UserTool defines the MCP tool for looking up another player.
var UserTool = mcp.NewTool("osu_user",
	mcp.WithDescription("Look up an osu! player by username."),
	mcp.WithString("username",
		mcp.Description("The player's username"),
		mcp.Required(),
	),
	mcp.WithString("mode",
		mcp.Description("Game mode: osu, taiko, fruits or mania. Defaults to osu."),
		mcp.Enum("osu", "taiko", "fruits", "mania"),
	),
)

// HandleProfileTool returns the logged-in user's profile as JSON.
func HandleProfileTool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	logger.Info("Handling osu_profile tool")

	sp, err := core.SessionFromContext(ctx)
	if err != nil {
		logger.Error("Missing session from context", "error", err)
		return nil, err
	}

	p, err := sp.FetchProfile(ctx)
	if err != nil {
		return result.Error(ctx, err)
	}
	return result.JSON(ctx, p)
}

// HandleUserTool returns another player's profile as JSON.
func HandleUserTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	username := req.GetString("username", "")
	mode := req.GetString("mode", "")
	logger.Info("Handling osu_user tool", "username", username, "mode", mode)

	sp, err := core.SessionFromContext(ctx)
	if err != nil {
		logger.Error("Missing session from context", "error", err)
		return nil, err
	}

	p, err := sp.LookupUser(ctx, username, mode)
	if err != nil {
		return result.Error(ctx, err)
	}
	return result.JSON(ctx, p)
}
