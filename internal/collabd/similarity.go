package collabd

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Similarity scores origin against updated from 0 to 100 as the cosine
// similarity of their embeddings. Identical texts score 100 without
// consulting the engine.
func (s *Service) Similarity(ctx context.Context, origin, updated string) (float64, error) {
	if origin == updated {
		return 100, nil
	}

	var a, b []float32
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := s.engine.Embed(gCtx, s.embedModel, origin)
		if err != nil {
			return fmt.Errorf("embedding origin: %w", err)
		}
		a = vec
		return nil
	})
	g.Go(func() error {
		vec, err := s.engine.Embed(gCtx, s.embedModel, updated)
		if err != nil {
			return fmt.Errorf("embedding new text: %w", err)
		}
		b = vec
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d vs %d", len(a), len(b))
	}
	return Score(cosine(a, b)), nil
}

// Score maps a cosine similarity to the 0-100 scale, clamping negatives to 0.
func Score(cos float64) float64 {
	return math.Round(math.Max(0, math.Min(1, cos))*10000) / 100
}

// cosine returns dot(a,b) / (|a| |b|), or 0 when either vector is zero.
func cosine(a, b []float32) float64 {
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	if aSq == 0 || bSq == 0 {
		return 0
	}
	return dot / (math.Sqrt(aSq) * math.Sqrt(bSq))
}
