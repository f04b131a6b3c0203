// Package intent turns free-form user text into the structured
// scheduling intent consumed by the resolver. Extraction is delegated
// to an LLM when one is configured; a deterministic keyword extractor
// serves demo deployments without an API key.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dharmateja03/CalBot/ai/llm"
	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

const systemPromptTemplate = `You are the intent extraction layer of a scheduling assistant.
The current time is %s (UTC).
Convert the user's latest message, in the context of the conversation, into a single JSON object and nothing else:
{
  "action": "create" | "cancel" | "modify" | "query",
  "title": "short event title",
  "description": "longer description or empty",
  "duration_minutes": integer or null when the user did not say,
  "windows": [{"earliest": "RFC3339 timestamp", "latest": "RFC3339 timestamp"}],
  "recurrence": {"count": integer, "pattern": "daily" | "weekdays" | "weekly"} or null,
  "target": "title of the existing event for cancel/modify, else empty",
  "priority": "high" | "medium" | "low",
  "confidence": "high" | "ambiguous",
  "needs_clarification": boolean,
  "questions": ["question to ask the user", ...],
  "reason": "why the request is ambiguous, when it is"
}
Rules:
- "tomorrow" and weekday names are relative to the current time above.
- A bare day with no time of day means a window covering 09:00 to 17:00 UTC of that day.
- "morning" means 09:00-12:00, "afternoon" means 13:00-17:00, "evening" means 17:00-20:00.
- Never invent a duration. If the user gave none, set duration_minutes to null.
- If you cannot tell what the user wants, set needs_clarification to true and ask targeted questions.
- Output raw JSON only, no markdown fences.`

// Extractor converts text to intents using an LLM. It is stateless
// with respect to the scheduling core.
type Extractor struct {
	llm    llm.Service
	logger *slog.Logger
}

// NewExtractor creates an LLM-backed extractor.
func NewExtractor(service llm.Service, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: service, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, text string, history []scheduler.HistoryMessage) (*scheduler.Intent, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemPrompt(fmt.Sprintf(systemPromptTemplate, time.Now().UTC().Format(time.RFC3339))))
	for _, item := range history {
		messages = append(messages, llm.Message{Role: item.Role, Content: item.Content})
	}
	messages = append(messages, llm.UserMessage(text))

	completion, err := e.llm.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	parsed, err := parseIntent(completion)
	if err != nil {
		if _, ok := err.(*scheduler.AmbiguousIntentError); ok {
			return nil, err
		}
		// A malformed completion is indistinguishable from an
		// ambiguous request from the caller's point of view.
		e.logger.Warn("unparseable intent completion", "err", err)
		return nil, &scheduler.AmbiguousIntentError{
			Reason:    "could not interpret the request",
			Questions: []string{"Could you rephrase that? For example: schedule 2 hours for the report tomorrow morning."},
		}
	}

	if parsed.Action == scheduler.ActionCreate && parsed.Title == "" {
		parsed.Title = fallbackTitle(text)
	}
	return parsed, nil
}

// fallbackTitle derives an event title from the raw request when the
// model omitted one.
func fallbackTitle(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 48 {
		text = strings.TrimSpace(text[:48])
	}
	if text == "" {
		return "Untitled event"
	}
	return text
}
