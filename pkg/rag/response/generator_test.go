package response

import (
	"context"
	"errors"
	"testing"

	"soul-journal-be/internal/constant"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/llm"
	"soul-journal-be/pkg/rag/aggregate"
	"soul-journal-be/pkg/store"
)

type fakeLLM struct {
	response string
	err      error
	got      []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.got = history
	return f.response, f.err
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.response, f.err
}

func evidenceWithRows() aggregate.Evidence {
	return aggregate.Evidence{
		Rows:         []store.EvidenceRow{{ID: "e1", Content: "ran along the river"}},
		SearchMethod: "vector_search",
	}
}

func TestGenerateReturnsModelAnswer(t *testing.T) {
	provider := &fakeLLM{response: "You wrote about running twice this week."}
	g := NewGenerator(provider, logger.NewNopLogger())

	got := g.Generate(context.Background(), "did I run this week?", nil, evidenceWithRows())

	if got != provider.response {
		t.Errorf("got %q", got)
	}
	if len(provider.got) < 2 || provider.got[0].Role != "system" {
		t.Errorf("system prompt missing from messages: %+v", provider.got)
	}
}

func TestGenerateShortCircuitsWithoutEvidence(t *testing.T) {
	provider := &fakeLLM{response: "should never be used"}
	g := NewGenerator(provider, logger.NewNopLogger())

	got := g.Generate(context.Background(), "anything", nil, aggregate.Evidence{NoEvidence: true})

	if got != constant.ReplyNoEvidence {
		t.Errorf("got %q, want the no-evidence reply", got)
	}
	if provider.got != nil {
		t.Error("model invoked despite empty evidence")
	}
}

func TestGenerateApologizesOnProviderFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeLLM
	}{
		{"provider error", &fakeLLM{err: errors.New("timeout")}},
		{"blank answer", &fakeLLM{response: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.provider, logger.NewNopLogger())
			got := g.Generate(context.Background(), "q", nil, evidenceWithRows())
			if got != constant.ReplyGenericApology {
				t.Errorf("got %q, want apologetic fallback", got)
			}
		})
	}
}

func TestGenerateTrimsHistoryWindow(t *testing.T) {
	provider := &fakeLLM{response: "ok"}
	g := NewGenerator(provider, logger.NewNopLogger())

	history := make([]store.Turn, 30)
	for i := range history {
		history[i] = store.Turn{Role: store.RoleUser, Content: "old turn"}
	}

	g.Generate(context.Background(), "q", history, evidenceWithRows())

	// system + capped history + current message
	if len(provider.got) != historyWindow+2 {
		t.Errorf("got %d messages, want %d", len(provider.got), historyWindow+2)
	}
}
