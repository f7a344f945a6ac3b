package osu

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-training/osu-companion/pkg/core"
)

// Game modes accepted by the API.
const (
	ModeOsu    = "osu"
	ModeTaiko  = "taiko"
	ModeFruits = "fruits"
	ModeMania  = "mania"
)

// DefaultScoreLimit is how many best scores are requested.
const DefaultScoreLimit = 20

var modAcronym = regexp.MustCompile(`^[A-Z0-9]{2}$`)

// NormalizeMode lower-cases mode, defaults it to osu and rejects unknown modes.
func NormalizeMode(mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "":
		return ModeOsu, nil
	case ModeOsu, ModeTaiko, ModeFruits, ModeMania:
		return mode, nil
	default:
		return "", core.InvalidInput("unknown game mode " + strconv.Quote(mode))
	}
}

// NormalizeMods upper-cases and de-duplicates mod acronyms such as "HD" or "DT".
func NormalizeMods(mods []string) ([]string, error) {
	if len(mods) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(mods))
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if !modAcronym.MatchString(m) {
			return nil, core.InvalidInput("invalid mod " + strconv.Quote(m))
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, accessToken string) (*core.Profile, error) {
	var profile core.Profile
	if err := c.getJSON(ctx, "me", accessToken, mePath, nil, &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 || profile.Username == "" {
		return nil, core.MalformedResponse("profile missing id or username")
	}
	return &profile, nil
}

// User looks up another player by username in the given mode.
func (c *Client) User(ctx context.Context, accessToken, username, mode string) (*core.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, core.InvalidInput("username is empty")
	}
	mode, err := NormalizeMode(mode)
	if err != nil {
		return nil, err
	}

	path := usersPath + "/" + url.PathEscape(username) + "/" + mode
	query := url.Values{}
	query.Set("key", "username")

	var profile core.Profile
	if err := c.getJSON(ctx, "user", accessToken, path, query, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// BestScoresRequest selects a page of a user's best plays.
type BestScoresRequest struct {
	UserID int64
	Mode   string
	Mods   []string
	Limit  int
}

// BestScores returns the user's top plays, best first.
func (c *Client) BestScores(ctx context.Context, accessToken string, r BestScoresRequest) ([]core.ScoreEntry, error) {
	if r.UserID <= 0 {
		return nil, core.InvalidInput("user id must be positive")
	}
	mode, err := NormalizeMode(r.Mode)
	if err != nil {
		return nil, err
	}
	mods, err := NormalizeMods(r.Mods)
	if err != nil {
		return nil, err
	}
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultScoreLimit
	}

	query := url.Values{}
	query.Set("mode", mode)
	query.Set("limit", strconv.Itoa(limit))
	for _, m := range mods {
		query.Add("mods", m)
	}

	path := usersPath + "/" + strconv.FormatInt(r.UserID, 10) + "/scores/best"
	var scores []core.ScoreEntry
	if err := c.getJSON(ctx, "best_scores", accessToken, path, query, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
