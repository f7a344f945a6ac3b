package main

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-training/osu-companion/pkg/core"
)

func TestFormatThousands(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := formatThousands(tt.in); got != tt.want {
			t.Errorf("formatThousands(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSparkline(t *testing.T) {
	got := sparkline([]int64{1000, 500, 100}, 10)
	if got != "▁▄█" {
		t.Errorf("sparkline = %q, want %q", got, "▁▄█")
	}

	flat := sparkline([]int64{7, 7, 7}, 10)
	if flat != "███" {
		t.Errorf("flat sparkline = %q", flat)
	}

	unranked := sparkline([]int64{0, 1000, 0, 100}, 10)
	if unranked != " ▁ █" {
		t.Errorf("unranked sparkline = %q, want %q", unranked, " ▁ █")
	}
	if blank := sparkline([]int64{0, 0}, 10); blank != "  " {
		t.Errorf("all-unranked sparkline = %q", blank)
	}

	long := make([]int64, 90)
	for i := range long {
		long[i] = int64(1000 - i)
	}
	if n := utf8.RuneCountInString(sparkline(long, 30)); n != 30 {
		t.Errorf("sparkline width = %d, want 30", n)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Errorf("truncate zero = %q", got)
	}
}

func TestRenderProfile(t *testing.T) {
	global := int64(12345)
	p := &core.Profile{
		ID:       1,
		Username: "alice",
		Country:  core.Country{Code: "JP", Name: "Japan"},
		Statistics: core.Statistics{
			PP:          4321.6,
			GlobalRank:  &global,
			PlayCount:   20000,
			HitAccuracy: 98.766,
			Level:       core.Level{Current: 100, Progress: 42},
		},
		RankHistory: &core.RankHistory{Mode: "osu", Data: []int64{20000, 15000, 12345}},
	}

	var buf bytes.Buffer
	renderProfile(&buf, p, 80)
	out := buf.String()

	for _, want := range []string{"alice (id 1)", "#12,345", "- (Japan)", "4,322 pp", "98.77%", "20,000", "100 (42%)", "▁"} {
		if !strings.Contains(out, want) {
			t.Errorf("profile output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderScores(t *testing.T) {
	scores := []core.ScoreEntry{
		{
			PP:         301.25,
			Accuracy:   0.9876,
			Rank:       "S",
			Mods:       []string{"HD", "DT"},
			Beatmap:    core.Beatmap{Version: "Insane"},
			BeatmapSet: core.BeatmapSet{Artist: "Band", Title: "Song"},
		},
		{
			PP:         100,
			Accuracy:   0.9,
			Rank:       "A",
			Beatmap:    core.Beatmap{Version: "Hard"},
			BeatmapSet: core.BeatmapSet{Artist: "X", Title: strings.Repeat("long", 30)},
		},
	}

	var buf bytes.Buffer
	renderScores(&buf, scores, 80)
	out := buf.String()

	if !strings.Contains(out, "Band - Song [Insane]") || !strings.Contains(out, "+HDDT") {
		t.Errorf("first score not rendered:\n%s", out)
	}
	if !strings.Contains(out, "+NM") {
		t.Errorf("nomod score not marked:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if n := utf8.RuneCountInString(line); n > 80 {
			t.Errorf("line wider than terminal (%d): %q", n, line)
		}
	}

	buf.Reset()
	renderScores(&buf, nil, 80)
	if !strings.Contains(buf.String(), "no scores") {
		t.Errorf("empty list output = %q", buf.String())
	}
}
