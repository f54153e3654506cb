// Package advice asks a remote language model for budget advice. Every
// failure is turned into a fixed user-facing message; callers never see an
// error.
package advice

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"orcamento/internal/core"
	"orcamento/internal/log"
)

const (
	FallbackNoCredential  = "Configure a chave da API para receber conselhos financeiros personalizados."
	FallbackRequestFailed = "Desculpe, não consegui analisar seu orçamento agora. Tente novamente em instantes."
	FallbackEmpty         = "Sem conselhos disponíveis no momento."
)

type Advisor struct {
	gen      Generator
	provider string
	model    string
	logger   *log.Logger
	group    singleflight.Group
}

func NewAdvisor(gen Generator, provider, model string, logger *log.Logger) *Advisor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Advisor{
		gen:      gen,
		provider: provider,
		model:    model,
		logger:   logger.WithComponent(log.ComponentAdvice),
	}
}

// Advise returns advice text for the given visible entries and summary.
// Identical concurrent requests share one upstream call.
func (a *Advisor) Advise(ctx context.Context, entries []core.BudgetEntry, summary core.BudgetSummary) string {
	prompt := BuildPrompt(entries, summary)

	v, _, shared := a.group.Do(prompt, func() (any, error) {
		// Detached from the first caller so its cancellation does not fail
		// the callers sharing this request; the client timeout still applies.
		return a.generate(context.WithoutCancel(ctx), len(entries), prompt), nil
	})
	if shared {
		a.logger.DebugContext(ctx, "Advice request shared with an in-flight call")
	}
	return v.(string)
}

func (a *Advisor) generate(ctx context.Context, count int, prompt string) string {
	start := time.Now()
	text, err := a.gen.Generate(ctx, prompt)
	fields := []any{
		log.FieldOperation, log.OpAdvise,
		log.FieldProvider, a.provider,
		log.FieldModel, a.model,
		"entries", count,
		log.FieldDuration, time.Since(start).Milliseconds(),
	}

	switch {
	case errors.Is(err, ErrMissingCredential):
		a.logger.WarnContext(ctx, "Advice requested without an API key", fields...)
		return FallbackNoCredential
	case err != nil:
		a.logger.Failure(ctx, "Advice request failed", err, fields...)
		return FallbackRequestFailed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		a.logger.WarnContext(ctx, "Advice response was empty", fields...)
		return FallbackEmpty
	}
	a.logger.InfoContext(ctx, "Advice generated", append(fields, "chars", len(text))...)
	return text
}
