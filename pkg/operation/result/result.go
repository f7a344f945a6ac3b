// Package result converts osu! query outcomes into MCP tool results.
package result

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-training/osu-companion/pkg/core"
)

// Error turns domain failures into tool errors the caller can read; anything
// else is returned as a protocol error.
func Error(ctx context.Context, err error) (*mcp.CallToolResult, error) {
	var e *core.Error
	if errors.As(err, &e) {
		core.LoggerFromCtx(ctx).Warn("osu request failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	core.LoggerFromCtx(ctx).Error("osu request failed", "error", err)
	return nil, err
}

// JSON marshals v into a text result.
func JSON(ctx context.Context, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		core.LoggerFromCtx(ctx).Error("Failed to marshal result to JSON", "error", err)
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
