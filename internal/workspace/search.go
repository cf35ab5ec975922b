package workspace

import (
	"context"
	"fmt"
	"strings"
)

type searchSession struct {
	inflight  int
	completed bool
	lastQuery string
	// gen counts successful searches.
	gen int
}

// SearchState is the rendered state of the keyword search.
type SearchState struct {
	Loading   bool   `json:"loading"`
	Completed bool   `json:"completed"`
	LastQuery string `json:"last_query,omitempty"`
	Label     string `json:"label,omitempty"`
}

// SearchLabel is the caption shown above searched keywords.
func SearchLabel(query string) string {
	return fmt.Sprintf("Result from %s..", query)
}

func (w *Workspace) searchStateLocked() SearchState {
	st := SearchState{
		Loading:   w.search.inflight > 0,
		Completed: w.search.completed,
		LastQuery: w.search.lastQuery,
	}
	if st.Completed {
		st.Label = SearchLabel(st.LastQuery)
	}
	return st
}

// Search replaces the keyword list with the results for query and closes
// every open tooltip. A blank query does nothing. On failure the list and
// the label of the previous search are left unchanged.
func (w *Workspace) Search(ctx context.Context, query string) ([]Keyword, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	w.mu.Lock()
	w.search.inflight++
	startGen, wasCompleted := w.search.gen, w.search.completed
	w.search.completed = false
	w.mu.Unlock()

	labels, err := w.searchKeywords(ctx, query)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.search.inflight--

	if err != nil {
		w.logger.Warn("keyword search failed", "query", query, "error", err)
		if w.search.gen == startGen {
			w.search.completed = wasCompleted
		}
		return nil, fmt.Errorf("searching keywords: %w", err)
	}

	keywords := make([]Keyword, len(labels))
	listed := make(map[string]bool, len(labels))
	for i, l := range labels {
		keywords[i] = Keyword{Label: l, Provenance: ProvenanceSearched}
		listed[l] = true
	}
	w.keywords = keywords
	clear(w.open)
	for label, e := range w.entries {
		if !listed[label] && !e.inserting {
			delete(w.entries, label)
		}
	}
	w.search.completed = true
	w.search.lastQuery = query
	w.search.gen++

	return append([]Keyword{}, keywords...), nil
}

func (w *Workspace) searchKeywords(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeouts.Search)
	defer cancel()
	return w.searcher.SearchKeywords(ctx, query)
}
