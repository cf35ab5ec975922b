package workspace

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/kalambet/keyweave/internal/session"
)

// GaugeReading is the diversity score plus its rendering.
type GaugeReading struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
	Width string  `json:"width"`
}

// NewGaugeReading renders v.
func NewGaugeReading(v float64) GaugeReading {
	return GaugeReading{Value: v, Color: GaugeColor(v), Width: GaugeWidth(v)}
}

// GaugeColor interpolates from neutral gray at v <= 0 to full red at v >= 100.
func GaugeColor(v float64) string {
	if v <= 0 {
		return "#d3d3d3"
	}
	if v >= 100 {
		return "#ff0000"
	}
	red := int(math.Floor(v / 100 * 255))
	return fmt.Sprintf("rgb(%d, 0, 0)", red)
}

// GaugeWidth is the bar width for v, clamped to [0,100] percent.
func GaugeWidth(v float64) string {
	return strconv.FormatFloat(math.Max(0, math.Min(100, v)), 'f', -1, 64) + "%"
}

// Diversity converts a 0-100 similarity into a diversity score.
func Diversity(similarity float64) float64 {
	return 100 - similarity
}

type diversityGauge struct {
	// checking is held for a whole CheckDiversity call.
	checking sync.Mutex

	mu    sync.Mutex
	value float64
}

func (g *diversityGauge) get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func (g *diversityGauge) set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

func parseGaugeValue(vals session.Values) (float64, error) {
	raw, ok := vals[session.KeyGaugeValue]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", session.KeyGaugeValue, raw, err)
	}
	return v, nil
}

func formatGaugeValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CheckDiversity compares the current story to the last checkpoint through
// the similarity service. On success the gauge shows 100 - similarity and
// the compared text becomes the new checkpoint. On failure nothing changes
// and no alert is raised. Concurrent checks run one at a time, so each
// compares against the checkpoint left by the one before.
func (w *Workspace) CheckDiversity(ctx context.Context) (GaugeReading, error) {
	w.gauge.checking.Lock()
	defer w.gauge.checking.Unlock()

	current := w.rev.Current()
	if current == "" {
		return NewGaugeReading(w.gauge.get()), ErrEmptyStory
	}
	origin := w.rev.Previous()

	callCtx, cancel := context.WithTimeout(ctx, w.timeouts.Similarity)
	defer cancel()
	sim, err := w.scorer.Similarity(callCtx, origin, current)
	if err != nil {
		w.logger.Warn("similarity check failed", "error", err)
		return NewGaugeReading(w.gauge.get()), fmt.Errorf("checking diversity: %w", err)
	}

	value := Diversity(sim)
	w.gauge.set(value)
	if err := w.persist.Save(context.WithoutCancel(ctx), session.Values{session.KeyGaugeValue: formatGaugeValue(value)}); err != nil {
		w.logger.Warn("persisting gauge value", "error", err)
	}
	w.rev.CommitCheckpoint(ctx, current)

	w.logger.Debug("diversity checked", "similarity", sim, "diversity", value)
	return NewGaugeReading(value), nil
}
