package embedding

import (
	"context"
	"testing"
	"time"
)

type countingModel struct {
	embeds  int
	batches int
}

func (m *countingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embeds++
	return []float32{float32(len(text))}, nil
}

func (m *countingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batches++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func TestCachedModelServesRepeatsFromCache(t *testing.T) {
	inner := &countingModel{}
	m, err := NewCachedModel(inner, 10, time.Minute)
	if err != nil {
		t.Fatalf("NewCachedModel() error = %v", err)
	}
	ctx := context.Background()

	first, err := m.Embed(ctx, "notice period")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := m.Embed(ctx, "notice period")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if inner.embeds != 1 {
		t.Errorf("provider calls = %d, want 1", inner.embeds)
	}
	if first[0] != second[0] {
		t.Error("cached vector differs from original")
	}
}

func TestCachedModelBatchSkipsKnownTexts(t *testing.T) {
	inner := &countingModel{}
	m, _ := NewCachedModel(inner, 10, time.Minute)
	ctx := context.Background()

	if _, err := m.Embed(ctx, "alpha"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	vecs, err := m.EmbedBatch(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 2 || vecs[0] == nil || vecs[1] == nil {
		t.Fatalf("vecs = %v", vecs)
	}

	// Fully cached batch should not touch the provider again.
	before := inner.batches
	if _, err := m.EmbedBatch(ctx, []string{"alpha", "beta"}); err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if inner.batches != before {
		t.Errorf("provider batch calls grew from %d to %d", before, inner.batches)
	}
}
