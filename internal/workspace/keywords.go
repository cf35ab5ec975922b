package workspace

import (
	"context"
	"slices"
	"strings"
)

// Provenance tells where a listed keyword came from.
type Provenance string

const (
	ProvenanceDefault   Provenance = "default"
	ProvenanceSearched  Provenance = "searched"
	ProvenanceUserAdded Provenance = "user-added"
)

// Keyword is one entry of the keyword panel.
type Keyword struct {
	Label      string     `json:"label"`
	Provenance Provenance `json:"provenance"`
}

// Phase is the lifecycle position of a keyword entry.
type Phase string

const (
	PhaseClosed          Phase = "closed"
	PhaseFetchingDetail  Phase = "fetching-detail"
	PhaseDetailShown     Phase = "detail-shown"
	PhaseInsertPending   Phase = "insert-pending"
	PhaseInsertCompleted Phase = "insert-completed"
)

// entry is the per-keyword record, keyed by label in Workspace.entries.
// Entries with the same label share one record.
type entry struct {
	detail      string
	loading     bool
	fetched     bool
	failed      bool
	detailStory string // story text the detail was fetched against
	inserting   bool
	completed   bool
}

// needsFetch reports whether opening the tooltip must fetch a detail: never
// while a fetch is in flight, otherwise when nothing was fetched yet, the
// last fetch failed, or the story changed since.
func (e *entry) needsFetch(story string) bool {
	if e.loading {
		return false
	}
	return !e.fetched || e.failed || e.detailStory != story
}

// insertable reports whether the cached detail may be merged into story:
// it must have been fetched successfully against that exact text.
func (e *entry) insertable(story string) bool {
	return e.fetched && !e.failed && !e.loading && e.detailStory == story
}

// KeywordState is the rendered state of one keyword entry.
type KeywordState struct {
	Keyword
	Phase           Phase  `json:"phase"`
	Detail          string `json:"detail,omitempty"`
	DetailLoading   bool   `json:"detail_loading"`
	TooltipOpen     bool   `json:"tooltip_open"`
	InsertCompleted bool   `json:"insert_completed"`
	// CanInsert is true exactly when Insert would start a merge.
	CanInsert bool `json:"can_insert"`
}

func (w *Workspace) stateLocked(k Keyword, story string) KeywordState {
	st := KeywordState{Keyword: k, TooltipOpen: w.open[k.Label]}
	e, ok := w.entries[k.Label]
	if ok {
		st.Detail = e.detail
		st.DetailLoading = e.loading
		st.InsertCompleted = e.completed
	}

	switch {
	case !st.TooltipOpen:
		st.Phase = PhaseClosed
	case !ok || e.loading:
		st.Phase = PhaseFetchingDetail
	case e.inserting:
		st.Phase = PhaseInsertPending
	case e.completed:
		st.Phase = PhaseInsertCompleted
	default:
		st.Phase = PhaseDetailShown
	}
	st.CanInsert = st.TooltipOpen && ok && !w.merging && e.insertable(story)
	return st
}

func (w *Workspace) lookupLocked(label string) (Keyword, bool) {
	for _, k := range w.keywords {
		if k.Label == label {
			return k, true
		}
	}
	return Keyword{}, false
}

func (w *Workspace) entryLocked(label string) *entry {
	e, ok := w.entries[label]
	if !ok {
		e = &entry{}
		w.entries[label] = e
	}
	return e
}

// Keywords returns the listed keywords in display order.
func (w *Workspace) Keywords() []Keyword {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.keywords)
}

// KeywordState returns the state of a listed keyword.
func (w *Workspace) KeywordState(label string) (KeywordState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k, ok := w.lookupLocked(label)
	if !ok {
		return KeywordState{}, ErrUnknownKeyword
	}
	return w.stateLocked(k, w.rev.Current()), nil
}

// Completed returns the keywords merged into the story at least once.
func (w *Workspace) Completed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.completed)
}

// AddKeyword appends a user-added keyword. Duplicates are allowed and share
// state with the existing entry of the same label.
func (w *Workspace) AddKeyword(label string) (Keyword, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Keyword{}, ErrEmptyKeyword
	}
	k := Keyword{Label: label, Provenance: ProvenanceUserAdded}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.keywords = append(w.keywords, k)
	return k, nil
}

// Toggle opens or closes the tooltip of a keyword. Opening behaves like
// Open. Closing keeps the cached detail.
func (w *Workspace) Toggle(ctx context.Context, label string) (KeywordState, error) {
	w.mu.Lock()
	k, ok := w.lookupLocked(label)
	if !ok {
		w.mu.Unlock()
		return KeywordState{}, ErrUnknownKeyword
	}
	if w.open[label] {
		delete(w.open, label)
		st := w.stateLocked(k, w.rev.Current())
		w.mu.Unlock()
		return st, nil
	}
	return w.openLocked(ctx, k)
}

// Open shows the tooltip of a keyword, fetching the concept detail for the
// current story when no usable detail is cached, and blocks until the
// fetch resolves. An already open tooltip whose detail went stale is
// refreshed. A failed fetch stores FailedDetail and is retried on the
// next open.
func (w *Workspace) Open(ctx context.Context, label string) (KeywordState, error) {
	w.mu.Lock()
	k, ok := w.lookupLocked(label)
	if !ok {
		w.mu.Unlock()
		return KeywordState{}, ErrUnknownKeyword
	}
	return w.openLocked(ctx, k)
}

// openLocked is called with w.mu held and releases it.
func (w *Workspace) openLocked(ctx context.Context, k Keyword) (KeywordState, error) {
	label := k.Label
	story := w.rev.Current()
	w.open[label] = true
	e := w.entryLocked(label)
	if !e.needsFetch(story) {
		st := w.stateLocked(k, story)
		w.mu.Unlock()
		return st, nil
	}
	e.loading = true
	w.mu.Unlock()

	detail, err := w.fetchDetail(ctx, story, label)

	w.mu.Lock()
	defer w.mu.Unlock()

	e.loading = false
	e.fetched = true
	e.detailStory = story
	if err != nil {
		w.logger.Warn("concept detail fetch failed", "keyword", label, "error", err)
		e.detail = FailedDetail
		e.failed = true
	} else {
		e.detail = detail
		e.failed = false
	}

	if w.entries[label] != e {
		return KeywordState{}, ErrKeywordDropped
	}
	return w.stateLocked(k, w.rev.Current()), nil
}

func (w *Workspace) fetchDetail(ctx context.Context, story, label string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeouts.Concept)
	defer cancel()
	return w.concepts.GenerateConcept(ctx, story, label)
}
