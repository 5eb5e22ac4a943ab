package usecase

import (
	"fmt"
	"time"

	"nimbus-ai/internal/domain"
)

// DefaultSystemPrompt instructs the model to answer weather questions
// through the registered tool rather than from its own knowledge.
const DefaultSystemPrompt = `You are a weather assistant. Answer questions about ` +
	`weather conditions for any location and date. Use the get_weather tool to ` +
	`retrieve real data; never invent observations. When the user gives a date, ` +
	`pass it to the tool as YYYY-MM-DD. When no date is given, omit it. If the ` +
	`tool reports an error, explain the problem to the user in plain language.`

// ContextBuilder assembles the message window sent to the model:
// system prompt, prior exchanges, then the live query. History beyond
// maxExchanges is dropped oldest-first.
type ContextBuilder struct {
	systemPrompt string
	maxExchanges int
	now          func() time.Time
}

// NewContextBuilder creates a builder. An empty prompt selects
// DefaultSystemPrompt; maxExchanges <= 0 means no cap beyond what the
// store already enforces.
func NewContextBuilder(systemPrompt string, maxExchanges int) *ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ContextBuilder{
		systemPrompt: systemPrompt,
		maxExchanges: maxExchanges,
		now:          time.Now,
	}
}

// Build produces the initial message window for one run. The system
// prompt is stamped with today's date so the model can resolve relative
// phrasings like "tomorrow" into absolute dates.
func (b *ContextBuilder) Build(history []domain.Exchange, query string) []domain.Message {
	if b.maxExchanges > 0 && len(history) > b.maxExchanges {
		history = history[len(history)-b.maxExchanges:]
	}

	msgs := make([]domain.Message, 0, 2*len(history)+2)
	msgs = append(msgs, domain.Message{
		Role:    domain.RoleSystem,
		Content: fmt.Sprintf("%s\nToday's date is %s.", b.systemPrompt, b.now().Format(time.DateOnly)),
	})
	for _, ex := range history {
		msgs = append(msgs,
			domain.Message{Role: domain.RoleUser, Content: ex.Query},
			domain.Message{Role: domain.RoleAssistant, Content: ex.Answer},
		)
	}
	return append(msgs, domain.Message{Role: domain.RoleUser, Content: query})
}
