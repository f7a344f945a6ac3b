package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/go-training/osu-companion/pkg/core"
)

const (
	defaultWidth = 80
	minWidth     = 40
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

var printer = message.NewPrinter(language.English)

func renderProfile(w io.Writer, p *core.Profile, width int) {
	fmt.Fprintf(w, "%s (id %d)\n", p.Username, p.ID)
	fmt.Fprintln(w, strings.Repeat("-", clampWidth(width)))

	country := p.Country.Name
	if country == "" {
		country = p.CountryCode
	}
	st := p.Statistics
	fmt.Fprintf(w, "  Global rank   %s\n", rank(st.GlobalRank))
	fmt.Fprintf(w, "  Country rank  %s (%s)\n", rank(st.CountryRank), country)
	fmt.Fprintf(w, "  Performance   %s pp\n", formatThousands(int64(st.PP+0.5)))
	fmt.Fprintf(w, "  Accuracy      %.2f%%\n", st.HitAccuracy)
	fmt.Fprintf(w, "  Play count    %s\n", formatThousands(st.PlayCount))
	fmt.Fprintf(w, "  Level         %d (%d%%)\n", st.Level.Current, st.Level.Progress)

	if p.RankHistory != nil && len(p.RankHistory.Data) > 0 {
		fmt.Fprintf(w, "  Rank history  %s\n", sparkline(p.RankHistory.Data, clampWidth(width)-16))
	}
	fmt.Fprintln(w)
}

func renderScores(w io.Writer, scores []core.ScoreEntry, width int) {
	fmt.Fprintf(w, "Best scores (%d)\n", len(scores))
	fmt.Fprintln(w, strings.Repeat("-", clampWidth(width)))
	if len(scores) == 0 {
		fmt.Fprintln(w, "  no scores")
		fmt.Fprintln(w)
		return
	}

	// "NN. " + title + " " + stats; the title gets what is left
	const statsWidth = 34
	titleWidth := clampWidth(width) - 4 - statsWidth - 1
	for i, s := range scores {
		mods := "NM"
		if len(s.Mods) > 0 {
			mods = strings.Join(s.Mods, "")
		}
		stats := fmt.Sprintf("%7.1fpp %6.2f%% %-2s %-8s", s.PP, s.Accuracy*100, s.Rank, "+"+mods)
		fmt.Fprintf(w, "%2d. %-*s %s\n", i+1, titleWidth, truncate(s.Title(), titleWidth), stats)
	}
	fmt.Fprintln(w)
}

// sparkline draws rank history so that a better (lower) rank is a taller bar.
// At most width points are shown, newest last. Unranked days (0) are blank.
func sparkline(data []int64, width int) string {
	if width < 1 {
		width = 1
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	var lo, hi int64
	for _, v := range data {
		if v <= 0 {
			continue
		}
		if lo == 0 || v < lo {
			lo = v
		}
		hi = max(hi, v)
	}

	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range data {
		if v <= 0 {
			b.WriteByte(' ')
			continue
		}
		idx := top
		if hi > lo {
			idx = int(int64(top) * (hi - v) / (hi - lo))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func rank(r *int64) string {
	if r == nil || *r <= 0 {
		return "-"
	}
	return "#" + formatThousands(*r)
}

func formatThousands(n int64) string {
	return printer.Sprintf("%d", n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func clampWidth(w int) int {
	if w < minWidth {
		return minWidth
	}
	if w > 120 {
		return 120
	}
	return w
}
