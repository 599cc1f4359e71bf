package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/repo"
)

func okMark() string    { return color.GreenString("✓") }
func errorMark() string { return color.RedString("✗") }

func renderPurge(w io.Writer, res repo.PurgeResult) {
	fmt.Fprintln(w, color.CyanString("Purged"))
	fmt.Fprintf(w, "  cache entries:   %d\n", res.Cache)
	fmt.Fprintf(w, "  rate windows:    %d\n", res.RateLimits)
	fmt.Fprintf(w, "  delivery claims: %d\n", res.Deliveries)
}

func renderStats(w io.Writer, st *repo.DashboardStats) {
	fmt.Fprintln(w, color.CyanString("Relay stats"))
	fmt.Fprintf(w, "  sessions:        %d\n", st.TotalSessions)
	platforms := make([]string, 0, len(st.ByPlatform))
	for p := range st.ByPlatform {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	for _, p := range platforms {
		fmt.Fprintf(w, "    %-13s %d\n", p+":", st.ByPlatform[p])
	}
	fmt.Fprintf(w, "  cache hit runs:  %d\n", st.CacheHitRuns)
	fmt.Fprintf(w, "  live cache:      %d entries, %d hits\n", st.LiveCacheItems, st.CacheHits)
	fmt.Fprintf(w, "  avg processing:  %.0f ms\n", st.AvgProcessingMs)
	fmt.Fprintf(w, "  est. spend:      $%.4f\n", st.TotalCostUSD)
	errs := fmt.Sprintf("%d", st.ErrorsLast24h)
	if st.ErrorsLast24h > 0 {
		errs = color.RedString(errs)
	}
	fmt.Fprintf(w, "  errors (24h):    %s\n", errs)
	if st.LastSessionAt != nil {
		fmt.Fprintf(w, "  last session:    %s\n", st.LastSessionAt.UTC().Format(time.RFC3339))
	}
}

func renderSessions(w io.Writer, rows []domain.VoiceSession, total int64) {
	fmt.Fprintf(w, "%s (%d of %d)\n", color.CyanString("Recent sessions"), len(rows), total)
	for _, s := range rows {
		hit := ""
		if s.CacheHit {
			hit = color.YellowString(" cached")
		}
		fmt.Fprintf(w, "%s %-8s %6dms%s  %s\n",
			color.HiBlackString(s.CreatedAt.UTC().Format("2006-01-02 15:04")),
			s.Platform, s.ProcessingTimeMs, hit, clip(s.TranscribedText, 60))
	}
}

// clip shortens s to n runes on one line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
