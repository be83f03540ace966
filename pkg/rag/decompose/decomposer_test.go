package decompose

import (
	"context"
	"errors"
	"testing"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/llm"
	"soul-journal-be/pkg/store"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeVocab struct {
	vocab Vocabulary
	err   error
}

func (f *fakeVocab) Vocabulary(ctx context.Context) (Vocabulary, error) {
	return f.vocab, f.err
}

func testVocab() *fakeVocab {
	return &fakeVocab{vocab: Vocabulary{
		Themes:   []string{"work", "family", "health"},
		Emotions: []string{"stress", "joy", "anxiety"},
	}}
}

func TestDecomposeParsesModelOutput(t *testing.T) {
	provider := &fakeLLM{response: `{
		"sub_questions": [
			{"text": "When did I write about work this month?", "type": "temporal", "priority": 4, "strategy": "structured", "themes": ["work"], "last_days": 30},
			{"text": "How did my mood trend?", "type": "emotional", "priority": 5, "strategy": "hybrid", "emotions": ["stress", "joy"]}
		]
	}`}
	d := NewDecomposer(provider, testVocab(), logger.NewNopLogger())

	subs := d.Decompose(context.Background(), "How was my mood at work this month?", nil, nil)

	if len(subs) != 2 {
		t.Fatalf("got %d sub-questions, want 2", len(subs))
	}
	if subs[0].Type != TypeTemporal || subs[0].Strategy != StrategyStructured {
		t.Errorf("first sub-question: got %s/%s", subs[0].Type, subs[0].Strategy)
	}
	if subs[0].Params.TimeRange == nil {
		t.Error("temporal sub-question lost its time range")
	}
	if subs[1].Type != TypeEmotional || len(subs[1].Params.Emotions) != 2 {
		t.Errorf("second sub-question: got %+v", subs[1])
	}
}

func TestDecomposeBoundsAndClamping(t *testing.T) {
	provider := &fakeLLM{response: `{
		"sub_questions": [
			{"text": "q1", "type": "temporal", "priority": 9, "strategy": "vector"},
			{"text": "q2", "type": "emotional", "priority": 0, "strategy": "hybrid"},
			{"text": "q3", "type": "bogus-type", "priority": 3, "strategy": "teleport"},
			{"text": "q4", "type": "thematic", "priority": 2, "strategy": "vector"},
			{"text": "q5", "type": "entity", "priority": 2, "strategy": "vector"},
			{"text": "q6", "type": "entity", "priority": 2, "strategy": "vector"}
		]
	}`}
	d := NewDecomposer(provider, testVocab(), logger.NewNopLogger())

	subs := d.Decompose(context.Background(), "busy question", nil, nil)

	if len(subs) != MaxSubQuestions {
		t.Fatalf("got %d sub-questions, want cap of %d", len(subs), MaxSubQuestions)
	}
	if subs[0].Priority != MaxPriority {
		t.Errorf("priority not clamped down: %d", subs[0].Priority)
	}
	if subs[1].Priority != MinPriority {
		t.Errorf("priority not clamped up: %d", subs[1].Priority)
	}
	if subs[2].Type != TypeContextual || subs[2].Strategy != StrategyVector {
		t.Errorf("invalid type/strategy not defaulted: %s/%s", subs[2].Type, subs[2].Strategy)
	}
}

func TestDecomposeConfinesTermsToVocabulary(t *testing.T) {
	provider := &fakeLLM{response: `{
		"sub_questions": [
			{"text": "emotional check", "type": "emotional", "priority": 3, "strategy": "hybrid",
			 "emotions": ["stress", "melancholy", "Joy"], "themes": ["work", "quantum-physics"]}
		]
	}`}
	d := NewDecomposer(provider, testVocab(), logger.NewNopLogger())

	subs := d.Decompose(context.Background(), "how do I feel", nil, nil)

	if len(subs) != 1 {
		t.Fatalf("got %d sub-questions, want 1", len(subs))
	}
	got := subs[0].Params
	if len(got.Emotions) != 2 {
		t.Errorf("emotions not confined to vocabulary: %v", got.Emotions)
	}
	if len(got.Themes) != 1 || got.Themes[0] != "work" {
		t.Errorf("themes not confined to vocabulary: %v", got.Themes)
	}
}

func TestDecomposeFallsBackWhenModelFails(t *testing.T) {
	provider := &fakeLLM{err: errors.New("upstream timeout")}
	d := NewDecomposer(provider, testVocab(), logger.NewNopLogger())

	subs := d.Decompose(context.Background(), "Have I made progress on my stress levels?", nil, nil)

	if len(subs) < 1 || len(subs) > MaxSubQuestions {
		t.Fatalf("fallback produced %d sub-questions", len(subs))
	}
	types := map[Type]bool{}
	for _, sq := range subs {
		types[sq.Type] = true
	}
	if !types[TypeEmotional] || !types[TypeAnalytical] || !types[TypeContextual] {
		t.Errorf("fallback missed heuristic coverage: %v", types)
	}
}

func TestDecomposeFallsBackOnMalformedOutput(t *testing.T) {
	provider := &fakeLLM{response: "I cannot split this question, sorry."}
	d := NewDecomposer(provider, testVocab(), logger.NewNopLogger())

	subs := d.Decompose(context.Background(), "what happened yesterday", nil, nil)

	if len(subs) == 0 {
		t.Fatal("decomposition must never return an empty list")
	}
	if subs[len(subs)-1].Type != TypeContextual {
		t.Errorf("fallback missing contextual safety net: %+v", subs)
	}
}

func TestDecomposeAttachesCallerWindow(t *testing.T) {
	provider := &fakeLLM{response: `{
		"sub_questions": [
			{"text": "themes lately", "type": "thematic", "priority": 3, "strategy": "vector"}
		]
	}`}
	d := NewDecomposer(provider, testVocab(), logger.NewNopLogger())
	window := store.LastDays(7)

	subs := d.Decompose(context.Background(), "what themes came up", nil, &window)

	if subs[0].Params.TimeRange == nil || !subs[0].Params.TimeRange.Equal(window) {
		t.Errorf("caller window not attached: %+v", subs[0].Params.TimeRange)
	}
}
