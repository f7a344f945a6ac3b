package scores

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/operation/result"
)

var BestScoresTool = mcp.NewTool("osu_best_scores",
	mcp.WithDescription("List the logged-in user's top 20 plays, best first."),
	mcp.WithString("mode",
		mcp.Description("Game mode: osu, taiko, fruits or mania. Defaults to osu."),
		mcp.Enum("osu", "taiko", "fruits", "mania"),
	),
	mcp.WithString("mods",
		mcp.Description("Optional comma-separated mod acronyms to filter by, e.g. \"HD,DT\"."),
	),
)

// entry is the trimmed view of a play returned to the caller.
type entry struct {
	Title      string   `json:"title"`
	Difficulty float64  `json:"difficulty"`
	Mods       []string `json:"mods"`
	PP         float64  `json:"pp"`
	Rank       string   `json:"rank"`
	Accuracy   float64  `json:"accuracy"`
	MaxCombo   int      `json:"max_combo"`
	Score      int64    `json:"score"`
	BeatmapID  int64    `json:"beatmap_id"`
}

func HandleBestScoresTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	mode := req.GetString("mode", "")
	mods := splitMods(req.GetString("mods", ""))
	logger.Info("Handling osu_best_scores tool", "mode", mode, "mods", mods)

	sp, err := core.SessionFromContext(ctx)
	if err != nil {
		logger.Error("Missing session from context", "error", err)
		return nil, err
	}

	plays, err := sp.FetchBestScores(ctx, mode, mods)
	if err != nil {
		return result.Error(ctx, err)
	}

	out := make([]entry, 0, len(plays))
	for _, s := range plays {
		out = append(out, entry{
			Title:      s.Title(),
			Difficulty: s.Beatmap.DifficultyRating,
			Mods:       s.Mods,
			PP:         s.PP,
			Rank:       s.Rank,
			Accuracy:   s.Accuracy,
			MaxCombo:   s.MaxCombo,
			Score:      s.Score,
			BeatmapID:  s.Beatmap.ID,
		})
	}
	return result.JSON(ctx, out)
}

func splitMods(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '+'
	})
}
