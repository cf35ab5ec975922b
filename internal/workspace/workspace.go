// Package workspace holds the state of one editing session: the story
// buffer, the keyword panel with its per-keyword tooltip lifecycles, the
// global merge gate, the diversity gauge and the keyword search.
//
// All operations are safe for concurrent use. Collaborator calls are made
// without holding the workspace lock, so several keywords can fetch details
// at once while the story stays editable; responses are applied in the
// order they complete.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/keyweave/internal/session"
)

var (
	ErrEmptyStory        = errors.New("story is empty")
	ErrEmptyQuery        = errors.New("search query is empty")
	ErrEmptyKeyword      = errors.New("keyword is empty")
	ErrUnknownKeyword    = errors.New("keyword is not listed")
	ErrKeywordDropped    = errors.New("keyword was replaced by a search")
	ErrTooltipClosed     = errors.New("keyword tooltip is closed")
	ErrDetailUnavailable = errors.New("keyword has no concept detail to insert")
	ErrMergeInFlight     = errors.New("another insert is in progress")
	ErrNoSuchExample     = errors.New("no such example story")
)

// ConceptGenerator produces a concept detail for a keyword in a story.
type ConceptGenerator interface {
	GenerateConcept(ctx context.Context, story, keyword string) (string, error)
}

// StoryMerger weaves a concept detail into a story.
type StoryMerger interface {
	MergeStory(ctx context.Context, story, detail, keyword string) (string, error)
}

// SimilarityScorer scores two texts from 0 (unrelated) to 100 (identical).
type SimilarityScorer interface {
	Similarity(ctx context.Context, origin, updated string) (float64, error)
}

// KeywordSearcher finds candidate keywords for a query.
type KeywordSearcher interface {
	SearchKeywords(ctx context.Context, query string) ([]string, error)
}

// Timeouts bound each collaborator call. Zero values use DefaultTimeout.
type Timeouts struct {
	Concept    time.Duration
	Merge      time.Duration
	Similarity time.Duration
	Search     time.Duration
}

// DefaultTimeout applies to collaborator calls without a configured timeout.
const DefaultTimeout = 30 * time.Second

// DefaultAlertDuration is how long a merge-failure alert stays visible.
const DefaultAlertDuration = 3 * time.Second

func (t Timeouts) withDefaults() Timeouts {
	for _, d := range []*time.Duration{&t.Concept, &t.Merge, &t.Similarity, &t.Search} {
		if *d <= 0 {
			*d = DefaultTimeout
		}
	}
	return t
}

// Deps holds the collaborators and settings of a Workspace.
type Deps struct {
	Concepts ConceptGenerator
	Merger   StoryMerger
	Scorer   SimilarityScorer
	Searcher KeywordSearcher

	Persister     session.Persister // optional; defaults to an in-memory persister
	Logger        *slog.Logger      // optional; defaults to slog.Default()
	Now           func() time.Time  // optional; defaults to time.Now
	Timeouts      Timeouts
	AlertDuration time.Duration
}

// Workspace is the state of one editing session.
type Workspace struct {
	concepts ConceptGenerator
	merger   StoryMerger
	scorer   SimilarityScorer
	searcher KeywordSearcher
	persist  session.Persister
	logger   *slog.Logger
	now      func() time.Time
	timeouts Timeouts
	alertTTL time.Duration

	rev   *RevisionStore
	gauge diversityGauge

	// mu guards everything below.
	mu        sync.Mutex
	merging   bool
	keywords  []Keyword
	entries   map[string]*entry
	open      map[string]bool
	completed []string
	search    searchSession
	alert     alert
}

type alert struct {
	message string
	expires time.Time
}

// New builds a Workspace, seeding the story and gauge from the persister.
func New(ctx context.Context, deps Deps) (*Workspace, error) {
	if deps.Concepts == nil || deps.Merger == nil || deps.Scorer == nil || deps.Searcher == nil {
		return nil, errors.New("workspace: all four collaborators are required")
	}
	w := &Workspace{
		concepts: deps.Concepts,
		merger:   deps.Merger,
		scorer:   deps.Scorer,
		searcher: deps.Searcher,
		persist:  deps.Persister,
		logger:   deps.Logger,
		now:      deps.Now,
		timeouts: deps.Timeouts.withDefaults(),
		alertTTL: deps.AlertDuration,
		entries:  make(map[string]*entry),
		open:     make(map[string]bool),
	}
	if w.persist == nil {
		w.persist = session.NewMemory()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.alertTTL <= 0 {
		w.alertTTL = DefaultAlertDuration
	}

	vals, err := w.persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading session state: %w", err)
	}
	w.rev = NewRevisionStore(vals, w.persist, w.logger)
	gv, err := parseGaugeValue(vals)
	if err != nil {
		w.logger.Warn("ignoring stored gauge value", "error", err)
	}
	w.gauge.set(gv)

	w.keywords = make([]Keyword, len(DefaultKeywords))
	for i, k := range DefaultKeywords {
		w.keywords[i] = Keyword{Label: k, Provenance: ProvenanceDefault}
	}
	return w, nil
}

// Story returns the current story text.
func (w *Workspace) Story() string {
	return w.rev.Current()
}

// SetStory records a direct user edit. It never moves the diversity checkpoint.
func (w *Workspace) SetStory(ctx context.Context, text string) {
	w.rev.SetCurrent(ctx, text)
}

// LoadExample replaces the story with example n (1-based).
func (w *Workspace) LoadExample(ctx context.Context, n int) error {
	if n < 1 || n > len(ExampleStories) {
		return fmt.Errorf("%w: %d", ErrNoSuchExample, n)
	}
	w.rev.SetCurrent(ctx, ExampleStories[n-1])
	return nil
}

// Merging reports whether a story merge is in flight.
func (w *Workspace) Merging() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.merging
}

// Alert returns the visible alert message, or "" once it has expired.
func (w *Workspace) Alert() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alertLocked()
}

func (w *Workspace) alertLocked() string {
	if w.alert.message == "" || !w.now().Before(w.alert.expires) {
		return ""
	}
	return w.alert.message
}

func (w *Workspace) raiseAlertLocked(msg string) {
	w.alert = alert{message: msg, expires: w.now().Add(w.alertTTL)}
}

// Snapshot is a consistent view of the whole workspace for rendering.
type Snapshot struct {
	Story           string         `json:"story"`
	PreviousChecked string         `json:"previous_checked"`
	Gauge           GaugeReading   `json:"gauge"`
	IsTextLoading   bool           `json:"is_text_loading"`
	Keywords        []KeywordState `json:"keywords"`
	Completed       []string       `json:"completed_keywords"`
	Search          SearchState    `json:"search"`
	Alert           string         `json:"alert,omitempty"`
}

// Snapshot returns the current state of every component.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	story := w.rev.Current()
	states := make([]KeywordState, len(w.keywords))
	for i, k := range w.keywords {
		states[i] = w.stateLocked(k, story)
	}
	return Snapshot{
		Story:           story,
		PreviousChecked: w.rev.Previous(),
		Gauge:           NewGaugeReading(w.gauge.get()),
		IsTextLoading:   w.merging,
		Keywords:        states,
		Completed:       append([]string{}, w.completed...),
		Search:          w.searchStateLocked(),
		Alert:           w.alertLocked(),
	}
}
