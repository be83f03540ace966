package classify

import (
	"context"
	"errors"
	"testing"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/internal/constant"
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

func TestTrivialAckShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"plain ok", "ok"},
		{"thanks with punctuation", "Thanks!"},
		{"emoji only", "👍🙏"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeLLM{}
			c := NewClassifier(provider, logger.NewNopLogger())

			got, err := c.Classify(context.Background(), tt.message, nil, store.Profile{EntryCount: 12})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Category != CategoryGeneral || !got.SkipPipeline {
				t.Errorf("got %+v, want GENERAL with skip", got)
			}
			if provider.calls != 0 {
				t.Errorf("model invoked %d times for a trivial ack", provider.calls)
			}
		})
	}
}

func TestZeroRecordAnalysisSkipsPipeline(t *testing.T) {
	provider := &fakeLLM{}
	c := NewClassifier(provider, logger.NewNopLogger())

	got, err := c.Classify(context.Background(), "analyze my stress patterns", nil, store.Profile{EntryCount: 0})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got.Category != CategoryGeneral {
		t.Errorf("Category = %s, want GENERAL", got.Category)
	}
	if !got.SkipPipeline {
		t.Error("SkipPipeline = false, want true")
	}
	if got.Reply != constant.ReplyFirstEntryInvite {
		t.Errorf("Reply = %q, want first-entry invite", got.Reply)
	}
	if provider.calls != 0 {
		t.Errorf("model invoked %d times, want 0", provider.calls)
	}
}

func TestClassifyJournalSpecific(t *testing.T) {
	provider := &fakeLLM{response: `{"category": "JOURNAL_SPECIFIC", "reply": "", "reasoning": "asks about own feelings"}`}
	c := NewClassifier(provider, logger.NewNopLogger())

	got, err := c.Classify(context.Background(), "How did I feel last week?", nil, store.Profile{EntryCount: 30})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Category != CategoryJournalSpecific {
		t.Errorf("Category = %s, want JOURNAL_SPECIFIC", got.Category)
	}
	if got.SkipPipeline {
		t.Error("SkipPipeline = true for a journal question")
	}
}

func TestContinuityFollowUpIsGeneral(t *testing.T) {
	provider := &fakeLLM{response: `{"category": "GENERAL", "reply": "Start with ten minutes before bed.", "reasoning": "follow-up on advice"}`}
	c := NewClassifier(provider, logger.NewNopLogger())

	history := []store.Turn{
		{Role: store.RoleUser, Content: "Any tips for better sleep?"},
		{Role: store.RoleAssistant, Content: "Try a wind-down routine: dim lights, no screens, a short journal entry."},
	}

	got, err := c.Classify(context.Background(), "How long should my routine be?", history, store.Profile{EntryCount: 30})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Category != CategoryGeneral {
		t.Errorf("Category = %s, want GENERAL for advice follow-up", got.Category)
	}
}

func TestOutOfEnumIsHardError(t *testing.T) {
	provider := &fakeLLM{response: `{"category": "SOMETHING_ELSE", "reply": "", "reasoning": ""}`}
	c := NewClassifier(provider, logger.NewNopLogger())

	_, err := c.Classify(context.Background(), "How did I feel in March?", nil, store.Profile{EntryCount: 5})
	if err == nil {
		t.Fatal("expected error for out-of-enum category")
	}
	if !apperr.IsKind(err, apperr.KindUpstreamProvider) {
		t.Errorf("error kind = %v, want UPSTREAM_PROVIDER", err)
	}
}

func TestProviderErrorIsHardError(t *testing.T) {
	provider := &fakeLLM{err: errors.New("connection refused")}
	c := NewClassifier(provider, logger.NewNopLogger())

	_, err := c.Classify(context.Background(), "What themes came up this month?", nil, store.Profile{EntryCount: 5})
	if err == nil {
		t.Fatal("expected error when provider fails")
	}
	if !apperr.IsKind(err, apperr.KindUpstreamProvider) {
		t.Errorf("error kind = %v, want UPSTREAM_PROVIDER", err)
	}
}
