package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestError_IsAndAs(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		kind       error
		wantStatus int
	}{
		{"denied", Denied("access_denied"), ErrDenied, 0},
		{"token exchange", TokenExchangeFailed(400, `{"error":"invalid_grant"}`), ErrTokenExchangeFailed, 400},
		{"malformed", MalformedResponse("missing access_token"), ErrMalformedResponse, 0},
		{"profile", ProfileFetchFailed(401), ErrProfileFetchFailed, 401},
		{"api", APIError(404, "not found"), ErrAPI, 404},
		{"not authenticated", NotAuthenticated("logged out"), ErrNotAuthenticated, 0},
		{"config", ConfigInvalid("client_id", "is required"), ErrConfigInvalid, 0},
		{"input", InvalidInput("empty username"), ErrInvalidInput, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("login: %w", tt.err)
			if !errors.Is(wrapped, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.kind)
			}
			var e *Error
			if !errors.As(wrapped, &e) {
				t.Fatalf("errors.As failed for %v", wrapped)
			}
			if e.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", e.Status, tt.wantStatus)
			}
			if got := StatusOf(wrapped); got != tt.wantStatus {
				t.Errorf("StatusOf() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestError_UnwrapCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := &Error{Kind: ErrAPI, Err: cause}
	if !errors.Is(err, ErrAPI) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected both kind and cause in chain: %v", err)
	}
}

func TestError_Message(t *testing.T) {
	err := TokenExchangeFailed(400, "bad code")
	want := "token exchange failed: status 400: bad code"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !strings.Contains(Denied("access_denied").Error(), "access_denied") {
		t.Errorf("Denied message should carry the reason")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	if (Session{AccessToken: "abc"}).Expired(now) {
		t.Error("session without expiry should never expire")
	}
	if !(Session{AccessToken: "abc", ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Error("session past expiry should be expired")
	}
	if (Session{AccessToken: "abc", ExpiresAt: now.Add(time.Hour)}).Expired(now) {
		t.Error("session before expiry should be active")
	}
}

func TestSession_MaskedToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", ""},
		{"short", "****"},
		{"abcdefghijklmnop", "abcdef****op"},
	}
	for _, tt := range tests {
		if got := (Session{AccessToken: tt.token}).MaskedToken(); got != tt.want {
			t.Errorf("MaskedToken(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestAuthorizationResult(t *testing.T) {
	if !CodeResult("abc").IsCode() {
		t.Error("CodeResult should be a code")
	}
	if ErrorResult(ErrTimeout).IsCode() {
		t.Error("ErrorResult should not be a code")
	}
	if CodeResult("").IsCode() {
		t.Error("empty code should not count as a code")
	}
}

func TestScoreEntry_Title(t *testing.T) {
	s := ScoreEntry{
		Beatmap:    Beatmap{Version: "Insane"},
		BeatmapSet: BeatmapSet{Title: "Blue Zenith", Artist: "xi"},
	}
	if got, want := s.Title(), "xi - Blue Zenith [Insane]"; got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
}

func TestSessionFromContext(t *testing.T) {
	if _, err := SessionFromContext(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("SessionFromContext() error = %v, want ErrNotAuthenticated", err)
	}
}
