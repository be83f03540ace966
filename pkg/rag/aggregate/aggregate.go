// Package aggregate folds the per-sub-question retrieval results into one
// evidence bundle for the answer generator, keeping the degradation story
// honest: the caller always learns which fragments failed and which
// fallbacks fired.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"soul-journal-be/pkg/rag/execute"
	"soul-journal-be/pkg/store"
)

const maxEvidenceRows = 40

// Evidence is the aggregated view over all sub-question results.
type Evidence struct {
	Results         []execute.Result
	Rows            []store.EvidenceRow
	Counts          map[string]int64
	Percentages     map[string]store.PercentageStat
	TopEmotions     map[string][]store.EmotionFrequency
	Degraded        bool
	FailedFragments []string
	FallbacksUsed   []string
	SearchMethod    string
	NoEvidence      bool
}

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build dedupes rows across sub-questions, keeps the strongest matches up to
// a cap, and derives the overall search method and degradation flags.
func (b *Builder) Build(results []execute.Result) Evidence {
	ev := Evidence{
		Results:     results,
		Counts:      map[string]int64{},
		Percentages: map[string]store.PercentageStat{},
		TopEmotions: map[string][]store.EmotionFrequency{},
	}

	seen := map[string]bool{}
	methods := map[string]bool{}

	for _, r := range results {
		switch r.State {
		case execute.StateFailed:
			ev.FailedFragments = append(ev.FailedFragments, r.SubQuestion.Text)
			ev.Degraded = true
			continue
		case execute.StateDegraded:
			ev.Degraded = true
		}

		if r.SearchMethod != "" {
			methods[r.SearchMethod] = true
		}
		ev.FallbacksUsed = append(ev.FallbacksUsed, r.FallbacksUsed...)

		if r.Count != nil {
			ev.Counts[r.SubQuestion.Text] = *r.Count
		}
		if r.Percentage != nil {
			ev.Percentages[r.SubQuestion.Text] = *r.Percentage
		}
		if len(r.TopEmotions) > 0 {
			ev.TopEmotions[r.SubQuestion.Text] = r.TopEmotions
		}

		for _, row := range r.Rows() {
			if seen[row.ID] {
				continue
			}
			seen[row.ID] = true
			ev.Rows = append(ev.Rows, row)
		}
	}

	sort.SliceStable(ev.Rows, func(i, j int) bool {
		return ev.Rows[i].Score > ev.Rows[j].Score
	})
	if len(ev.Rows) > maxEvidenceRows {
		ev.Rows = ev.Rows[:maxEvidenceRows]
	}

	ev.FallbacksUsed = dedupe(ev.FallbacksUsed)
	ev.SearchMethod = overallMethod(methods)
	ev.NoEvidence = len(ev.Rows) == 0 && len(ev.Counts) == 0 &&
		len(ev.Percentages) == 0 && len(ev.TopEmotions) == 0

	return ev
}

// overallMethod reports a single label for the whole request: mixed channels
// collapse to "hybrid", a lone channel keeps its own name.
func overallMethod(methods map[string]bool) string {
	switch len(methods) {
	case 0:
		return "none"
	case 1:
		for m := range methods {
			return m
		}
	}
	return "hybrid"
}

// PromptContext renders the evidence as the context block handed to the
// answer model.
func (ev Evidence) PromptContext() string {
	var sb strings.Builder

	if len(ev.Counts) > 0 || len(ev.Percentages) > 0 || len(ev.TopEmotions) > 0 {
		sb.WriteString("Statistics:\n")
		for q, count := range ev.Counts {
			sb.WriteString(fmt.Sprintf("- %s: %d entries\n", q, count))
		}
		for q, stat := range ev.Percentages {
			sb.WriteString(fmt.Sprintf("- %s: %.1f%% (%d of %d entries)\n", q, stat.Percentage, stat.SubsetCount, stat.TotalCount))
		}
		for q, freqs := range ev.TopEmotions {
			parts := make([]string, len(freqs))
			for i, f := range freqs {
				parts[i] = fmt.Sprintf("%s (%d)", f.Emotion, f.Count)
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", q, strings.Join(parts, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(ev.Rows) > 0 {
		sb.WriteString("Journal excerpts:\n")
		for i, row := range ev.Rows {
			sb.WriteString(fmt.Sprintf("[%d] %s", i+1, row.CreatedAt.Format("2006-01-02")))
			if len(row.Themes) > 0 {
				sb.WriteString(" (" + strings.Join(row.Themes, ", ") + ")")
			}
			sb.WriteString(": " + row.Content + "\n")
		}
	}

	if ev.Degraded {
		sb.WriteString("\nNote: retrieval was partially degraded")
		if len(ev.FailedFragments) > 0 {
			sb.WriteString("; no evidence for: " + strings.Join(ev.FailedFragments, "; "))
		}
		sb.WriteString(".\n")
	}

	return sb.String()
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
