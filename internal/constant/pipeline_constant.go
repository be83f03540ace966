package constant

const (
	ChatMessageRoleUser   = "user"
	ChatMessageRoleModel  = "model"
	ChatMessageRoleSystem = "system"

	// Classification of the current turn. The model must answer with JSON only.
	ClassificationPromptV2 = `You classify one turn of a conversation between a person and their journaling assistant.

Categories:
- JOURNAL_SPECIFIC: the question needs the person's own journal entries to answer
  (feelings over time, patterns, "how often did I...", "what did I write about...").
- NEEDS_CLARIFICATION: the question is about their journal but too ambiguous to retrieve for.
- GENERAL: greetings, small talk, general advice questions, and clarifying follow-ups
  to advice the assistant already gave.

Continuity rule: if the previous assistant turn delivered general advice and the current
turn follows up on that advice, classify GENERAL even when keywords sound personal.

Conversation so far:
%s

Current message:
%s

Respond with ONLY this JSON:
{"category": "JOURNAL_SPECIFIC" | "NEEDS_CLARIFICATION" | "GENERAL", "reply": "clarifying question or short reply when no retrieval is needed, else empty", "reasoning": "one sentence"}`

	// Decomposition into retrievable sub-questions. Vocabularies are injected so
	// the model cannot invent theme or emotion terms.
	DecompositionPromptV2 = `Split the question below into 1 to 4 independently answerable sub-questions
about a personal journal. For each one pick retrieval settings.

Valid theme terms: %s
Valid emotion terms: %s
Use ONLY terms from those lists. Leave the list empty rather than inventing a term.

Types: temporal, emotional, thematic, entity, analytical, contextual.
Strategies: vector (semantic similarity), structured (filters/aggregation), hybrid (both).
Counting or percentage questions need structured or hybrid. "Find examples of..." needs vector.

Question: %s
Recent context:
%s

Respond with ONLY this JSON:
{"sub_questions": [{"text": "...", "type": "...", "priority": 1-5, "strategy": "vector" | "structured" | "hybrid", "emotions": [], "themes": [], "entities": [], "analysis_kind": "count" | "percentage" | "top_emotions" | "", "last_days": 0, "rationale": "..."}]}`

	// Answer generation over assembled evidence.
	AnswerSystemPromptV2 = `You are a warm, grounded journaling companion. Answer the person's question using
ONLY the journal evidence provided. Reference moods and dates naturally, never invent
entries, and keep the answer to a few short paragraphs. If the evidence section says no
matching entries were found, say so gently and invite them to share more.`

	// Canned replies. Every externally visible failure still yields a usable answer.
	ReplyFirstEntryInvite = "I'd love to help you reflect, but I don't see any journal entries yet. Record your first entry and I can start finding patterns for you."
	ReplyGenericApology   = "I'm sorry, I ran into trouble answering that just now. Please try again in a moment."
	ReplyNoEvidence       = "I couldn't find journal entries matching that question. Could you tell me a bit more, or try a different time period?"
	ReplyAcknowledgement  = "You're welcome! I'm here whenever you want to reflect on your journal."
)
