// Package response turns aggregated evidence into the final answer text.
// Provider failures surface as apologetic replies, never raw errors.
package response

import (
	"context"
	"fmt"
	"strings"

	"soul-journal-be/internal/constant"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/llm"
	"soul-journal-be/pkg/rag/aggregate"
	"soul-journal-be/pkg/store"
)

const historyWindow = 10

type Generator struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewGenerator(llmProvider llm.LLMProvider, log logger.ILogger) *Generator {
	return &Generator{llmProvider: llmProvider, logger: log}
}

// Generate produces the answer from the evidence bundle. The reply is always
// non-empty and user-facing.
func (g *Generator) Generate(ctx context.Context, message string, history []store.Turn, evidence aggregate.Evidence) string {
	if evidence.NoEvidence {
		return constant.ReplyNoEvidence
	}

	messages := buildMessages(message, history, evidence)
	answer, err := g.llmProvider.Chat(ctx, messages,
		llm.WithTemperature(0.7),
		llm.WithMaxTokens(1200),
	)
	if err != nil {
		g.logger.Error("response", "answer generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return constant.ReplyGenericApology
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		g.logger.Warn("response", "model returned an empty answer", nil)
		return constant.ReplyGenericApology
	}
	return answer
}

func buildMessages(message string, history []store.Turn, evidence aggregate.Evidence) []llm.Message {
	system := constant.AnswerSystemPromptV2 + "\n\n" + evidence.PromptContext()

	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})

	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	for _, turn := range history[start:] {
		role := "user"
		if turn.Role == store.RoleAssistant || turn.Role == "model" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}

// Describe summarizes the answer provenance for the response envelope.
func Describe(evidence aggregate.Evidence) string {
	if evidence.NoEvidence {
		return "no evidence"
	}
	desc := evidence.SearchMethod
	if evidence.Degraded {
		desc = fmt.Sprintf("%s (degraded)", desc)
	}
	return desc
}
