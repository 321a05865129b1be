package provider

import (
	"context"
	"sync"
	"testing"
)

func TestGeminiModelForLeavesSharedModelUntouched(t *testing.T) {
	c, err := NewGemini(context.Background(), "gemini-1.5-pro", "test-key")
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}

	m := c.modelFor(512)
	if m == c.model {
		t.Fatal("a per-call output limit must not reuse the shared model")
	}
	if m.GenerationConfig.MaxOutputTokens == nil || *m.GenerationConfig.MaxOutputTokens != 512 {
		t.Errorf("copy MaxOutputTokens = %v, want 512", m.GenerationConfig.MaxOutputTokens)
	}
	if c.model.GenerationConfig.MaxOutputTokens != nil {
		t.Errorf("shared model MaxOutputTokens = %v, want unset", c.model.GenerationConfig.MaxOutputTokens)
	}
	if got := c.modelFor(0); got != c.model {
		t.Error("no output limit should reuse the shared model")
	}
}

func TestGeminiModelForConcurrentCalls(t *testing.T) {
	c, err := NewGemini(context.Background(), "gemini-1.5-pro", "test-key")
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		limit := int32(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := c.modelFor(int(limit))
			if m.GenerationConfig.MaxOutputTokens == nil || *m.GenerationConfig.MaxOutputTokens != limit {
				t.Errorf("copy MaxOutputTokens = %v, want %d", m.GenerationConfig.MaxOutputTokens, limit)
			}
		}()
	}
	wg.Wait()

	if c.model.GenerationConfig.MaxOutputTokens != nil {
		t.Errorf("shared model MaxOutputTokens = %v, want unset", c.model.GenerationConfig.MaxOutputTokens)
	}
}
