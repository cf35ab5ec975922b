package collabd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Backend is the set of operations the HTTP handler serves.
type Backend interface {
	Concept(ctx context.Context, story, keyword string) (string, error)
	Merge(ctx context.Context, story, detail, keyword string) (string, error)
	Similarity(ctx context.Context, origin, updated string) (float64, error)
	Search(ctx context.Context, query string) ([]string, error)
}

// NewHandler returns the collaborator HTTP API:
//
//	POST /concept-generate     {story, keyword}                 -> {concept_detail}
//	POST /story-merge          {story, concept_detail, keyword} -> {merged_story}
//	POST /sentence-similarity  {origin, new}                    -> {similarity}
//	GET  /search-keywords?query=                                -> {keywords}
func NewHandler(b Backend) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Post("/concept-generate", handleConcept(b))
	r.Post("/story-merge", handleMerge(b))
	r.Post("/sentence-similarity", handleSimilarity(b))
	r.Get("/search-keywords", handleSearch(b))

	return r
}

func handleConcept(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Story   string `json:"story"`
			Keyword string `json:"keyword"`
		}
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Keyword) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "keyword is required")
			return
		}

		detail, err := b.Concept(r.Context(), req.Story, req.Keyword)
		if err != nil {
			slog.Warn("concept generation failed", "keyword", req.Keyword, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "concept generation failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"concept_detail": detail})
	}
}

func handleMerge(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Story         string `json:"story"`
			ConceptDetail string `json:"concept_detail"`
			Keyword       string `json:"keyword"`
		}
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ConceptDetail) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "concept_detail is required")
			return
		}

		merged, err := b.Merge(r.Context(), req.Story, req.ConceptDetail, req.Keyword)
		if err != nil {
			slog.Warn("story merge failed", "keyword", req.Keyword, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "story merge failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"merged_story": merged})
	}
}

func handleSimilarity(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Origin string `json:"origin"`
			New    string `json:"new"`
		}
		if !decode(w, r, &req) {
			return
		}

		score, err := b.Similarity(r.Context(), req.Origin, req.New)
		if err != nil {
			slog.Warn("similarity failed", "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "similarity failed: %v", err)
			return
		}
		writeJSON(w, map[string]float64{"similarity": score})
	}
}

func handleSearch(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		keywords, err := b.Search(r.Context(), query)
		if err != nil {
			slog.Warn("keyword search failed", "query", query, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "keyword search failed: %v", err)
			return
		}
		writeJSON(w, map[string][]string{"keywords": keywords})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
