// Package classify decides what kind of turn the orchestrator is looking at
// before any retrieval money is spent.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/internal/constant"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/llm"
	"soul-journal-be/pkg/store"
)

type Category string

const (
	CategoryJournalSpecific    Category = "JOURNAL_SPECIFIC"
	CategoryNeedsClarification Category = "NEEDS_CLARIFICATION"
	CategoryGeneral            Category = "GENERAL"
)

// Classification is the verdict for one turn.
type Classification struct {
	Category     Category `json:"category"`
	Reply        string   `json:"reply,omitempty"`
	SkipPipeline bool     `json:"skip_pipeline"`
}

// historyWindow caps how many prior turns reach the model.
const historyWindow = 10

type Classifier struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewClassifier(llmProvider llm.LLMProvider, log logger.ILogger) *Classifier {
	return &Classifier{llmProvider: llmProvider, logger: log}
}

// Classify categorizes the current turn. Model failures and out-of-enum
// answers are hard errors: silently defaulting to a category would mis-route
// retrieval, so the caller decides whether to retry or degrade.
func (c *Classifier) Classify(ctx context.Context, message string, history []store.Turn, profile store.Profile) (*Classification, error) {
	trimmed := strings.TrimSpace(message)

	if isTrivialAck(trimmed) {
		return &Classification{
			Category:     CategoryGeneral,
			Reply:        constant.ReplyAcknowledgement,
			SkipPipeline: true,
		}, nil
	}

	if profile.EntryCount == 0 && looksAnalytical(trimmed) {
		c.logger.Info("classify", "analysis question from empty journal, skipping pipeline", map[string]interface{}{
			"message_len": len(trimmed),
		})
		return &Classification{
			Category:     CategoryGeneral,
			Reply:        constant.ReplyFirstEntryInvite,
			SkipPipeline: true,
		}, nil
	}

	prompt := fmt.Sprintf(constant.ClassificationPromptV2, renderHistory(history), trimmed)

	raw, err := c.llmProvider.Generate(ctx, prompt,
		llm.WithTemperature(0.1),
		llm.WithMaxTokens(300),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamProvider, "classifier call failed", err)
	}

	return parseClassification(raw)
}

type classificationPayload struct {
	Category  string `json:"category"`
	Reply     string `json:"reply"`
	Reasoning string `json:"reasoning"`
}

func parseClassification(raw string) (*Classification, error) {
	var payload classificationPayload
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamProvider, "classifier returned malformed output", err)
	}

	category := Category(strings.ToUpper(strings.TrimSpace(payload.Category)))
	switch category {
	case CategoryJournalSpecific, CategoryNeedsClarification, CategoryGeneral:
	default:
		return nil, apperr.New(apperr.KindUpstreamProvider,
			fmt.Sprintf("classifier returned out-of-enum category %q", payload.Category))
	}

	return &Classification{
		Category:     category,
		Reply:        strings.TrimSpace(payload.Reply),
		SkipPipeline: category != CategoryJournalSpecific && payload.Reply != "",
	}, nil
}

var trivialAcks = map[string]bool{
	"ok": true, "okay": true, "k": true,
	"thanks": true, "thank you": true, "thx": true, "ty": true,
	"cool": true, "great": true, "nice": true, "got it": true, "sure": true,
}

// isTrivialAck catches acknowledgements and emoji-only messages so they never
// reach a model.
func isTrivialAck(message string) bool {
	lowered := strings.ToLower(strings.TrimRight(message, ".!"))
	if trivialAcks[lowered] {
		return true
	}
	if lowered == "" {
		return true
	}
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var analyticalMarkers = []string{
	"analyze", "analysis", "pattern", "patterns", "rate me", "rate my",
	"insight", "insights", "top emotion", "statistics", "how often",
	"how many times", "trend", "trends", "summarize my",
}

func looksAnalytical(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range analyticalMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// renderHistory creates a readable transcript of the last turns for the prompt.
func renderHistory(history []store.Turn) string {
	if len(history) == 0 {
		return "(no prior turns)"
	}

	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
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
