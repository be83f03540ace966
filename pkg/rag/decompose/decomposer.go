// Package decompose splits a journal question into independently answerable
// sub-questions, each tagged with a retrieval strategy and parameters confined
// to the store's controlled vocabularies.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"soul-journal-be/internal/constant"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/llm"
	"soul-journal-be/pkg/store"
)

type Type string

const (
	TypeTemporal   Type = "temporal"
	TypeEmotional  Type = "emotional"
	TypeThematic   Type = "thematic"
	TypeEntity     Type = "entity"
	TypeAnalytical Type = "analytical"
	TypeContextual Type = "contextual"
)

type Strategy string

const (
	StrategyVector     Strategy = "vector"
	StrategyStructured Strategy = "structured"
	StrategyHybrid     Strategy = "hybrid"
)

const (
	MaxSubQuestions = 4
	MinPriority     = 1
	MaxPriority     = 5
)

// Params carry the retrieval hints extracted for one sub-question.
type Params struct {
	TimeRange    *store.TimeRange `json:"time_range,omitempty"`
	Emotions     []string         `json:"emotions,omitempty"`
	Themes       []string         `json:"themes,omitempty"`
	Entities     []string         `json:"entities,omitempty"`
	AnalysisKind string           `json:"analysis_kind,omitempty"` // "count" | "percentage" | "top_emotions"
}

type SubQuestion struct {
	Text      string   `json:"text"`
	Type      Type     `json:"type"`
	Priority  int      `json:"priority"`
	Strategy  Strategy `json:"strategy"`
	Params    Params   `json:"params"`
	Rationale string   `json:"rationale,omitempty"`
}

// Vocabulary is the closed set of terms the store actually indexes.
type Vocabulary struct {
	Themes   []string
	Emotions []string
}

// VocabularySource loads the controlled vocabularies (cached upstream).
type VocabularySource interface {
	Vocabulary(ctx context.Context) (Vocabulary, error)
}

type Decomposer struct {
	llmProvider llm.LLMProvider
	vocabSource VocabularySource
	logger      logger.ILogger
}

func NewDecomposer(llmProvider llm.LLMProvider, vocabSource VocabularySource, log logger.ILogger) *Decomposer {
	return &Decomposer{llmProvider: llmProvider, vocabSource: vocabSource, logger: log}
}

// Decompose never returns an empty list: when the model fails or produces
// garbage it falls back to the deterministic rule-based decomposer, so
// downstream stages are guaranteed at least one input.
func (d *Decomposer) Decompose(ctx context.Context, message string, history []store.Turn, window *store.TimeRange) []SubQuestion {
	vocab := d.loadVocabulary(ctx)

	subs, err := d.decomposeWithModel(ctx, message, history, vocab)
	if err != nil {
		d.logger.Warn("decompose", "model decomposition failed, using rule-based fallback", map[string]interface{}{
			"error": err.Error(),
		})
		subs = ruleBased(message)
	}

	return sanitize(subs, message, vocab, window)
}

func (d *Decomposer) loadVocabulary(ctx context.Context) Vocabulary {
	vocab, err := d.vocabSource.Vocabulary(ctx)
	if err != nil {
		d.logger.Warn("decompose", "vocabulary load failed, term confinement disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return Vocabulary{}
	}
	return vocab
}

type subQuestionPayload struct {
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Priority     int      `json:"priority"`
	Strategy     string   `json:"strategy"`
	Emotions     []string `json:"emotions"`
	Themes       []string `json:"themes"`
	Entities     []string `json:"entities"`
	AnalysisKind string   `json:"analysis_kind"`
	LastDays     int      `json:"last_days"`
	Rationale    string   `json:"rationale"`
}

type decompositionPayload struct {
	SubQuestions []subQuestionPayload `json:"sub_questions"`
}

func (d *Decomposer) decomposeWithModel(ctx context.Context, message string, history []store.Turn, vocab Vocabulary) ([]SubQuestion, error) {
	prompt := fmt.Sprintf(constant.DecompositionPromptV2,
		strings.Join(vocab.Themes, ", "),
		strings.Join(vocab.Emotions, ", "),
		message,
		renderHistory(history),
	)

	raw, err := d.llmProvider.Generate(ctx, prompt,
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(900),
	)
	if err != nil {
		return nil, fmt.Errorf("decomposition call failed: %w", err)
	}

	var payload decompositionPayload
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("decomposition output malformed: %w", err)
	}
	if len(payload.SubQuestions) == 0 {
		return nil, fmt.Errorf("decomposition produced no sub-questions")
	}

	subs := make([]SubQuestion, 0, len(payload.SubQuestions))
	for _, p := range payload.SubQuestions {
		sq := SubQuestion{
			Text:     strings.TrimSpace(p.Text),
			Type:     Type(strings.ToLower(p.Type)),
			Priority: p.Priority,
			Strategy: Strategy(strings.ToLower(p.Strategy)),
			Params: Params{
				Emotions:     p.Emotions,
				Themes:       p.Themes,
				Entities:     p.Entities,
				AnalysisKind: p.AnalysisKind,
			},
			Rationale: p.Rationale,
		}
		if p.LastDays > 0 {
			tr := store.LastDays(p.LastDays)
			sq.Params.TimeRange = &tr
		}
		subs = append(subs, sq)
	}
	return subs, nil
}

var moodKeywords = []string{
	"feel", "feeling", "felt", "mood", "emotion", "stress", "stressed",
	"anxious", "anxiety", "happy", "sad", "angry", "worried", "calm",
}

var progressKeywords = []string{
	"progress", "improve", "improving", "better", "worse", "change",
	"changed", "growth", "goal", "goals", "habit",
}

// ruleBased is the deterministic fallback: at most two heuristic
// sub-questions from keyword detection, plus a generic contextual safety
// net so the result is never empty.
func ruleBased(message string) []SubQuestion {
	lowered := strings.ToLower(message)
	var subs []SubQuestion

	if containsAny(lowered, moodKeywords) {
		subs = append(subs, SubQuestion{
			Text:      message,
			Type:      TypeEmotional,
			Priority:  4,
			Strategy:  StrategyHybrid,
			Rationale: "mood keywords detected",
		})
	}

	if containsAny(lowered, progressKeywords) {
		subs = append(subs, SubQuestion{
			Text:      message,
			Type:      TypeAnalytical,
			Priority:  3,
			Strategy:  StrategyHybrid,
			Rationale: "progress keywords detected",
		})
	}

	subs = append(subs, SubQuestion{
		Text:      message,
		Type:      TypeContextual,
		Priority:  2,
		Strategy:  StrategyVector,
		Rationale: "generic safety net",
	})

	return subs
}

// sanitize enforces the output contract: 1..4 sub-questions, priorities
// clamped into [1,5], terms confined to the vocabulary, and a fallback
// sub-question when cleaning leaves nothing usable.
func sanitize(subs []SubQuestion, message string, vocab Vocabulary, window *store.TimeRange) []SubQuestion {
	cleaned := make([]SubQuestion, 0, MaxSubQuestions)

	for _, sq := range subs {
		if strings.TrimSpace(sq.Text) == "" {
			continue
		}
		sq.Type = validType(sq.Type)
		sq.Strategy = validStrategy(sq.Strategy, sq.Type)
		sq.Priority = clamp(sq.Priority, MinPriority, MaxPriority)
		sq.Params.Emotions = confine(sq.Params.Emotions, vocab.Emotions)
		sq.Params.Themes = confine(sq.Params.Themes, vocab.Themes)
		if sq.Params.TimeRange == nil && window != nil {
			tr := *window
			sq.Params.TimeRange = &tr
		}
		cleaned = append(cleaned, sq)
		if len(cleaned) == MaxSubQuestions {
			break
		}
	}

	if len(cleaned) == 0 {
		safety := SubQuestion{
			Text:      message,
			Type:      TypeContextual,
			Priority:  2,
			Strategy:  StrategyVector,
			Rationale: "generic safety net",
		}
		if window != nil {
			tr := *window
			safety.Params.TimeRange = &tr
		}
		cleaned = append(cleaned, safety)
	}

	return cleaned
}

func validType(t Type) Type {
	switch t {
	case TypeTemporal, TypeEmotional, TypeThematic, TypeEntity, TypeAnalytical, TypeContextual:
		return t
	default:
		return TypeContextual
	}
}

func validStrategy(s Strategy, t Type) Strategy {
	switch s {
	case StrategyVector, StrategyStructured, StrategyHybrid:
		return s
	}
	if t == TypeAnalytical {
		return StrategyStructured
	}
	return StrategyVector
}

// confine drops any term absent from the controlled vocabulary. An empty
// vocabulary disables confinement rather than stripping everything.
func confine(terms, vocab []string) []string {
	if len(terms) == 0 || len(vocab) == 0 {
		return terms
	}
	allowed := make(map[string]bool, len(vocab))
	for _, v := range vocab {
		allowed[strings.ToLower(v)] = true
	}
	var kept []string
	for _, term := range terms {
		if allowed[strings.ToLower(term)] {
			kept = append(kept, term)
		}
	}
	return kept
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func renderHistory(history []store.Turn) string {
	if len(history) == 0 {
		return "(no prior turns)"
	}

	start := 0
	if len(history) > 6 {
		start = len(history) - 6
	}

	var sb strings.Builder
	for _, turn := range history[start:] {
		role := "User"
		if turn.Role == store.RoleAssistant || turn.Role == "model" {
			role = "Assistant"
		}
		content := turn.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", role, content))
	}
	return sb.String()
}

// extractJSON isolates JSON content from response
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}
