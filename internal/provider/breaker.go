package provider

import (
	"context"

	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/circuitbreaker"
)

// BreakerClient wraps a provider with a circuit breaker so that a
// persistently failing model endpoint fails fast instead of burning the
// pipeline's retry budget on every query.
type BreakerClient struct {
	inner   interfaces.LLM
	breaker *circuitbreaker.Breaker
}

// WithBreaker protects llm with breaker.
func WithBreaker(llm interfaces.LLM, breaker *circuitbreaker.Breaker) *BreakerClient {
	return &BreakerClient{inner: llm, breaker: breaker}
}

// Generate runs the wrapped provider unless the circuit is open, in which
// case it returns circuitbreaker.ErrCircuitOpen without a provider call.
func (c *BreakerClient) Generate(ctx context.Context, prompt string, maxOutputTokens int) (*schema.Generation, error) {
	var gen *schema.Generation
	err := c.breaker.Do(func() error {
		var innerErr error
		gen, innerErr = c.inner.Generate(ctx, prompt, maxOutputTokens)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return gen, nil
}

var _ interfaces.LLM = (*BreakerClient)(nil)
