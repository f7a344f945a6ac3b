package operation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/go-training/osu-companion/pkg/core"
	"github.com/go-training/osu-companion/pkg/operation/account"
	"github.com/go-training/osu-companion/pkg/operation/profile"
	"github.com/go-training/osu-companion/pkg/operation/scores"
)

type fakeSession struct {
	mu       sync.Mutex
	session  core.Session
	loggedIn bool

	gotMode    string
	gotMods    []string
	err        error
	loginErr   error
	loginCalls int
}

func (f *fakeSession) Session() (core.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.loggedIn
}

func (f *fakeSession) StartLogin(context.Context) (core.AuthorizationURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "https://osu.ppy.sh/oauth/authorize?client_id=1", nil
}

func (f *fakeSession) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = false
	f.session = core.Session{}
}

func (f *fakeSession) FetchProfile(context.Context) (*core.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Profile{ID: 1, Username: "alice"}, nil
}

func (f *fakeSession) FetchBestScores(_ context.Context, mode string, mods []string) ([]core.ScoreEntry, error) {
	f.gotMode, f.gotMods = mode, mods
	if f.err != nil {
		return nil, f.err
	}
	return []core.ScoreEntry{{
		PP:         321.5,
		Rank:       "SH",
		Mods:       mods,
		Beatmap:    core.Beatmap{ID: 5, Version: "Extra", DifficultyRating: 6.1},
		BeatmapSet: core.BeatmapSet{Title: "Song", Artist: "Band"},
	}}, nil
}

func (f *fakeSession) LookupUser(_ context.Context, username, _ string) (*core.Profile, error) {
	if strings.TrimSpace(username) == "" {
		return nil, core.InvalidInput("username is empty")
	}
	return &core.Profile{ID: 2, Username: username}, nil
}

func newFake() *fakeSession {
	return &fakeSession{
		loggedIn: true,
		session: core.Session{
			AccessToken: "abcdefghijkl",
			UserID:      1,
			Username:    "alice",
			ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	txt, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", res.Content[0])
	}
	return txt.Text
}

func TestProfileTool(t *testing.T) {
	ctx := core.WithSession(context.Background(), newFake())

	res, err := profile.HandleProfileTool(ctx, call("osu_profile", nil))
	if err != nil {
		t.Fatalf("HandleProfileTool() error = %v", err)
	}
	var p core.Profile
	if err := json.Unmarshal([]byte(text(t, res)), &p); err != nil {
		t.Fatalf("result is not a profile: %v", err)
	}
	if p.Username != "alice" {
		t.Errorf("username = %q, want alice", p.Username)
	}
}

func TestProfileTool_NotAuthenticated(t *testing.T) {
	fake := newFake()
	fake.err = core.NotAuthenticated("no active session")
	ctx := core.WithSession(context.Background(), fake)

	res, err := profile.HandleProfileTool(ctx, call("osu_profile", nil))
	if err != nil {
		t.Fatalf("domain errors should be tool results, got %v", err)
	}
	if !res.IsError {
		t.Error("IsError = false, want true")
	}
	if got := text(t, res); !strings.Contains(got, "not authenticated") {
		t.Errorf("result = %q", got)
	}
}

func TestTools_MissingSession(t *testing.T) {
	handlers := map[string]server.ToolHandlerFunc{
		"osu_profile":     profile.HandleProfileTool,
		"osu_user":        profile.HandleUserTool,
		"osu_best_scores": scores.HandleBestScoresTool,
		"osu_session":     account.HandleSessionTool,
		"osu_logout":      account.HandleLogoutTool,
		"osu_login":       account.HandleLoginTool,
	}
	for name, h := range handlers {
		_, err := h(context.Background(), call(name, map[string]any{"username": "x"}))
		if !errors.Is(err, core.ErrNotAuthenticated) {
			t.Errorf("%s: error = %v, want ErrNotAuthenticated", name, err)
		}
	}
}

func TestUserTool(t *testing.T) {
	ctx := core.WithSession(context.Background(), newFake())

	res, err := profile.HandleUserTool(ctx, call("osu_user", map[string]any{"username": "peppy", "mode": "taiko"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := text(t, res); !strings.Contains(got, `"username":"peppy"`) {
		t.Errorf("result = %s", got)
	}

	res, err = profile.HandleUserTool(ctx, call("osu_user", map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(text(t, res), "invalid input") {
		t.Errorf("empty username result = %+v", res)
	}
}

func TestBestScoresTool(t *testing.T) {
	fake := newFake()
	ctx := core.WithSession(context.Background(), fake)

	res, err := scores.HandleBestScoresTool(ctx, call("osu_best_scores", map[string]any{
		"mode": "mania",
		"mods": "HD, DT",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if fake.gotMode != "mania" {
		t.Errorf("mode = %q, want mania", fake.gotMode)
	}
	if strings.Join(fake.gotMods, ",") != "HD,DT" {
		t.Errorf("mods = %v, want [HD DT]", fake.gotMods)
	}

	var out []map[string]any
	if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0]["title"] != "Band - Song [Extra]" {
		t.Errorf("result = %v", out)
	}
}

func TestSessionAndLogoutTools(t *testing.T) {
	fake := newFake()
	ctx := core.WithSession(context.Background(), fake)

	res, err := account.HandleSessionTool(ctx, call("osu_session", nil))
	if err != nil {
		t.Fatal(err)
	}
	got := text(t, res)
	if !strings.Contains(got, "alice") || !strings.Contains(got, "abcdef****kl") {
		t.Errorf("session = %q", got)
	}
	if strings.Contains(got, "abcdefghijkl") {
		t.Error("session output leaks the full token")
	}

	res, err = account.HandleLogoutTool(ctx, call("osu_logout", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := text(t, res); got != "Logged out alice." {
		t.Errorf("logout = %q", got)
	}

	res, err = account.HandleLogoutTool(ctx, call("osu_logout", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := text(t, res); got != "Not logged in." {
		t.Errorf("second logout = %q", got)
	}
}

func TestLoginTool(t *testing.T) {
	fake := newFake()
	ctx := core.WithSession(context.Background(), fake)

	res, err := account.HandleLoginTool(ctx, call("osu_login", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := text(t, res); got != "Already logged in as alice." {
		t.Errorf("login while logged in = %q", got)
	}
	if fake.loginCalls != 0 {
		t.Errorf("StartLogin called %d times, want 0", fake.loginCalls)
	}

	// logging out must not be a dead end
	fake.Logout()
	res, err = account.HandleLoginTool(ctx, call("osu_login", nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(text(t, res), "https://osu.ppy.sh/oauth/authorize?client_id=1") {
		t.Errorf("login result = %q", text(t, res))
	}
	if fake.loginCalls != 1 {
		t.Errorf("StartLogin called %d times, want 1", fake.loginCalls)
	}
}

func TestLoginTool_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{"in progress", core.ErrLoginInProgress, "already waiting"},
		{"listener", core.ConfigInvalid("redirect_uri", "port busy"), "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.Logout()
			fake.loginErr = tt.err
			ctx := core.WithSession(context.Background(), fake)

			res, err := account.HandleLoginTool(ctx, call("osu_login", nil))
			if err != nil {
				t.Fatalf("domain errors should be tool results, got %v", err)
			}
			if !res.IsError || !strings.Contains(text(t, res), tt.wantText) {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestToolHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		next    server.ToolHandlerFunc
		wantErr bool
	}{
		{
			name: "ok",
			next: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("fine"), nil
			},
		},
		{
			name: "tool error",
			next: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("bad"), nil
			},
		},
		{
			name: "handler error",
			next: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("boom")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ToolHandlerMiddleware()(tt.next)
			_, err := h(context.Background(), call("osu_profile", nil))
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTool_WriteFirst(t *testing.T) {
	tool := &Tool{}
	tool.RegisterRead(server.ServerTool{Tool: profile.ProfileTool})
	tool.RegisterWrite(server.ServerTool{Tool: account.LogoutTool})

	tools := tool.Tools()
	if len(tools) != 2 {
		t.Fatalf("len = %d, want 2", len(tools))
	}
	if tools[0].Tool.Name != "osu_logout" || tools[1].Tool.Name != "osu_profile" {
		t.Errorf("order = %s, %s", tools[0].Tool.Name, tools[1].Tool.Name)
	}
}
