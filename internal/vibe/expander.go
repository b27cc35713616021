// Package vibe rewrites free-form "vibe" queries into concrete clothing
// keywords before embedding, via the Gemini API. It never fails a query:
// any error degrades to returning the input unchanged.
package vibe

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Expander wraps the generative-text capability behind a pass-through contract.
// A nil client (no API key configured) means Expand always passes through.
type Expander struct {
	client   *genai.Client
	model    string
	logger   *zap.Logger
	degraded atomic.Int64
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithLogger sets a logger for observing degrades and expansions.
func WithLogger(l *zap.Logger) ExpanderOption {
	return func(e *Expander) { e.logger = l }
}

// NewExpander creates an expander using the Gemini model. An empty apiKey is
// not an error: the expander is created disabled and passes queries through.
func NewExpander(ctx context.Context, apiKey, model string, opts ...ExpanderOption) (*Expander, error) {
	e := &Expander{model: model}
	for _, opt := range opts {
		opt(e)
	}
	if apiKey == "" {
		return e, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	e.client = client
	return e, nil
}

// Enabled reports whether a generative backend is configured.
func (e *Expander) Enabled() bool {
	return e.client != nil
}

// DegradedCount returns how many expansions fell back to pass-through.
func (e *Expander) DegradedCount() int64 {
	return e.degraded.Load()
}

// Expand rewrites text into a comma-separated clothing keyword list.
// On any failure, or when no backend is configured, the input is returned
// unchanged; the degrade is logged and counted, never surfaced as an error.
func (e *Expander) Expand(ctx context.Context, text string) string {
	if e.client == nil {
		e.markDegraded(text, nil)
		return text
	}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(buildPrompt(text)), nil)
	if err != nil {
		e.markDegraded(text, err)
		return text
	}
	expanded := strings.TrimSpace(resp.Text())
	if expanded == "" {
		e.markDegraded(text, nil)
		return text
	}
	if e.logger != nil {
		e.logger.Debug("vibe expansion",
			zap.String("query", text),
			zap.String("expanded", expanded),
		)
	}
	return expanded
}

func (e *Expander) markDegraded(text string, err error) {
	e.degraded.Add(1)
	if e.logger != nil {
		e.logger.Warn("vibe expansion degraded to pass-through",
			zap.String("query", text),
			zap.Error(err),
		)
	}
}
