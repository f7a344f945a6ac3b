package core

import (
	"strings"
	"time"
)

// AuthorizationURL is the provider consent page the user is sent to.
type AuthorizationURL string

// String returns the URL as a plain string.
func (u AuthorizationURL) String() string {
	return string(u)
}

// AuthorizationRequest holds the parameters of a single login attempt.
type AuthorizationRequest struct {
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope"`
	ResponseType string `json:"response_type"`
	State        string `json:"state,omitempty"`
}

// AuthorizationResult is what the redirect listener captured: either a code or an error.
type AuthorizationResult struct {
	Code string
	Err  error
}

// CodeResult returns a result carrying an authorization code.
func CodeResult(code string) AuthorizationResult {
	return AuthorizationResult{Code: code}
}

// ErrorResult returns a result carrying a failure.
func ErrorResult(err error) AuthorizationResult {
	return AuthorizationResult{Err: err}
}

// IsCode reports whether the result holds a usable authorization code.
func (r AuthorizationResult) IsCode() bool {
	return r.Err == nil && r.Code != ""
}

// TokenResponse represents the provider's token endpoint response.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"-"`
}

// Session is the currently authenticated user.
type Session struct {
	AccessToken string
	UserID      int64
	Username    string
	ExpiresAt   time.Time
}

// IsZero reports whether no session is present.
func (s Session) IsZero() bool {
	return s.AccessToken == ""
}

// Expired reports whether the access token is past its expiry at now.
// A session without a known expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// MaskedToken shows only the head and tail of the access token.
func (s Session) MaskedToken() string {
	token := s.AccessToken
	if len(token) > 8 {
		return token[:6] + "****" + token[len(token)-2:]
	}
	if len(token) > 0 {
		return "****"
	}
	return ""
}

// Country is the user's registered country.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Level is the user's account level.
type Level struct {
	Current  int `json:"current"`
	Progress int `json:"progress"`
}

// Statistics are the per-mode ranking figures of a user.
type Statistics struct {
	PP          float64 `json:"pp"`
	GlobalRank  *int64  `json:"global_rank"`
	CountryRank *int64  `json:"country_rank"`
	PlayCount   int64   `json:"play_count"`
	HitAccuracy float64 `json:"hit_accuracy"`
	Level       Level   `json:"level"`
}

// RankHistory is the daily global rank series, oldest first.
type RankHistory struct {
	Mode string  `json:"mode"`
	Data []int64 `json:"data"`
}

// Profile is a user as returned by the provider.
type Profile struct {
	ID          int64        `json:"id"`
	Username    string       `json:"username"`
	AvatarURL   string       `json:"avatar_url"`
	CountryCode string       `json:"country_code"`
	Country     Country      `json:"country"`
	PlayMode    string       `json:"playmode"`
	Statistics  Statistics   `json:"statistics"`
	RankHistory *RankHistory `json:"rank_history,omitempty"`
}

// BeatmapSet is the metadata shared by all difficulties of a song.
type BeatmapSet struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Creator string `json:"creator"`
}

// Beatmap is a single playable difficulty.
type Beatmap struct {
	ID               int64   `json:"id"`
	BeatmapSetID     int64   `json:"beatmapset_id"`
	Version          string  `json:"version"`
	DifficultyRating float64 `json:"difficulty_rating"`
	Mode             string  `json:"mode"`
}

// ScoreEntry is one play from a user's best scores.
type ScoreEntry struct {
	ID         int64      `json:"id"`
	Beatmap    Beatmap    `json:"beatmap"`
	BeatmapSet BeatmapSet `json:"beatmapset"`
	Mods       []string   `json:"mods"`
	PP         float64    `json:"pp"`
	Rank       string     `json:"rank"`
	Score      int64      `json:"score"`
	Accuracy   float64    `json:"accuracy"`
	MaxCombo   int        `json:"max_combo"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Title formats the score's beatmap as "Artist - Title [Version]".
func (s ScoreEntry) Title() string {
	var b strings.Builder
	if s.BeatmapSet.Artist != "" {
		b.WriteString(s.BeatmapSet.Artist)
		b.WriteString(" - ")
	}
	b.WriteString(s.BeatmapSet.Title)
	if s.Beatmap.Version != "" {
		b.WriteString(" [")
		b.WriteString(s.Beatmap.Version)
		b.WriteString("]")
	}
	return b.String()
}
