package aggregate

import (
	"testing"

	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/rag/execute"
	"soul-journal-be/pkg/store"
)

func result(text, method string, state execute.State, rows ...store.EvidenceRow) execute.Result {
	return execute.Result{
		SubQuestion:  decompose.SubQuestion{Text: text},
		State:        state,
		SearchMethod: method,
		VectorRows:   rows,
	}
}

func TestBuildDedupesAcrossSubQuestions(t *testing.T) {
	shared := store.EvidenceRow{ID: "e1", Content: "ran 5k", Score: 0.9}
	other := store.EvidenceRow{ID: "e2", Content: "rest day", Score: 0.7}

	ev := NewBuilder().Build([]execute.Result{
		result("q1", "vector_search", execute.StateSucceeded, shared, other),
		result("q2", "vector_search", execute.StateSucceeded, shared),
	})

	if len(ev.Rows) != 2 {
		t.Fatalf("got %d rows, want 2 after dedupe", len(ev.Rows))
	}
	if ev.Rows[0].ID != "e1" {
		t.Errorf("rows not ordered by score: %+v", ev.Rows)
	}
	if ev.Degraded || ev.NoEvidence {
		t.Errorf("healthy results flagged: degraded=%v noEvidence=%v", ev.Degraded, ev.NoEvidence)
	}
}

func TestBuildFlagsPartialFailure(t *testing.T) {
	ev := NewBuilder().Build([]execute.Result{
		result("worked fine", "vector_search", execute.StateSucceeded, store.EvidenceRow{ID: "e1"}),
		result("fell over", "", execute.StateFailed),
	})

	if !ev.Degraded {
		t.Error("failed fragment did not mark the bundle degraded")
	}
	if len(ev.FailedFragments) != 1 || ev.FailedFragments[0] != "fell over" {
		t.Errorf("failed fragments = %v", ev.FailedFragments)
	}
	if ev.NoEvidence {
		t.Error("partial evidence reported as none")
	}
}

func TestBuildDerivesOverallMethod(t *testing.T) {
	tests := []struct {
		name    string
		results []execute.Result
		want    string
	}{
		{
			"single channel keeps its name",
			[]execute.Result{result("q", "vector_search", execute.StateSucceeded, store.EvidenceRow{ID: "a"})},
			"vector_search",
		},
		{
			"mixed channels collapse to hybrid",
			[]execute.Result{
				result("q1", "vector_search", execute.StateSucceeded, store.EvidenceRow{ID: "a"}),
				result("q2", "structured", execute.StateSucceeded, store.EvidenceRow{ID: "b"}),
			},
			"hybrid",
		},
		{
			"all failed",
			[]execute.Result{result("q", "", execute.StateFailed)},
			"none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewBuilder().Build(tt.results).SearchMethod; got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildCollectsFallbacksAndStatistics(t *testing.T) {
	count := int64(12)
	degraded := execute.Result{
		SubQuestion:   decompose.SubQuestion{Text: "mentions of running"},
		State:         execute.StateDegraded,
		SearchMethod:  "keyword_fallback",
		FallbacksUsed: []string{"keyword"},
		StructuredRows: []store.EvidenceRow{
			{ID: "e1", Content: "went for a run"},
		},
	}
	counted := execute.Result{
		SubQuestion:  decompose.SubQuestion{Text: "how many runs"},
		State:        execute.StateSucceeded,
		SearchMethod: "structured",
		Count:        &count,
	}

	ev := NewBuilder().Build([]execute.Result{degraded, counted})

	if !ev.Degraded {
		t.Error("keyword fallback result did not mark bundle degraded")
	}
	if len(ev.FallbacksUsed) != 1 || ev.FallbacksUsed[0] != "keyword" {
		t.Errorf("fallbacksUsed = %v", ev.FallbacksUsed)
	}
	if ev.Counts["how many runs"] != 12 {
		t.Errorf("count lost in aggregation: %v", ev.Counts)
	}
	if ev.NoEvidence {
		t.Error("evidence present but bundle says none")
	}
}

func TestNoEvidenceSignal(t *testing.T) {
	ev := NewBuilder().Build([]execute.Result{result("q", "vector_search", execute.StateSucceeded)})
	if !ev.NoEvidence {
		t.Error("empty results did not raise the no-evidence signal")
	}
}
