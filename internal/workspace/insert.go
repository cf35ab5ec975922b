package workspace

import (
	"context"
	"fmt"
	"slices"
)

// Insert merges the cached concept detail of label into the story. The
// tooltip must be open and the detail fetched against the current story;
// after an edit or an earlier merge the keyword has to be opened again
// (see Open) before it can be re-inserted.
//
// Only one merge may be in flight per workspace: a concurrent call fails
// with ErrMergeInFlight instead of queueing. On success the story is
// replaced by the merged text (discarding any edit made while the merge was
// in flight) and label joins the completed keywords. On failure the story
// is left as it was and a transient alert is raised.
func (w *Workspace) Insert(ctx context.Context, label string) error {
	w.mu.Lock()
	if w.merging {
		w.mu.Unlock()
		return ErrMergeInFlight
	}
	if _, ok := w.lookupLocked(label); !ok {
		w.mu.Unlock()
		return ErrUnknownKeyword
	}
	if !w.open[label] {
		w.mu.Unlock()
		return ErrTooltipClosed
	}
	story := w.rev.Current()
	e, ok := w.entries[label]
	if !ok || !e.insertable(story) {
		w.mu.Unlock()
		return ErrDetailUnavailable
	}

	w.merging = true
	e.inserting = true
	wasCompleted := e.completed
	e.completed = false
	detail := e.detail
	w.mu.Unlock()

	merged, err := w.mergeStory(ctx, story, detail, label)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.merging = false
	e.inserting = false

	if err != nil {
		e.completed = wasCompleted
		w.raiseAlertLocked(MergeFailedAlert)
		w.logger.Warn("story merge failed", "keyword", label, "error", err)
		return fmt.Errorf("merging %q: %w", label, err)
	}

	w.rev.SetCurrent(ctx, merged)
	e.completed = true
	if !slices.Contains(w.completed, label) {
		w.completed = append(w.completed, label)
	}
	w.logger.Info("keyword merged into story", "keyword", label)
	return nil
}

func (w *Workspace) mergeStory(ctx context.Context, story, detail, label string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeouts.Merge)
	defer cancel()
	return w.merger.MergeStory(ctx, story, detail, label)
}
