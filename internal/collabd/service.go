// Package collabd is a reference implementation of the four collaborator
// services (concept generation, story merge, sentence similarity and
// keyword search) backed by a language-model engine.
package collabd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kalambet/keyweave/internal/engine"
)

// ErrEmptyResponse is returned when the model answers without usable content.
var ErrEmptyResponse = errors.New("model returned an empty response")

const maxKeywords = 8

// Config selects the models and cache lifetime of a Service.
type Config struct {
	ChatModel  string
	EmbedModel string
	// CacheTTL bounds how long concept details and search results are
	// reused. Zero disables caching.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Service answers collaborator requests using an engine.
type Service struct {
	engine     engine.Engine
	chatModel  string
	embedModel string
	cache      *cache.Cache
	logger     *slog.Logger
}

// NewService creates a Service.
func NewService(e engine.Engine, cfg Config) *Service {
	s := &Service{
		engine:     e,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		logger:     cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return s
}

func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) cached(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) remember(key string, v any) {
	if s.cache != nil {
		s.cache.SetDefault(key, v)
	}
}

// Concept elaborates keyword in the context of story.
func (s *Service) Concept(ctx context.Context, story, keyword string) (string, error) {
	key := cacheKey("concept", story, keyword)
	if v, ok := s.cached(key); ok {
		return v.(string), nil
	}

	raw, err := s.engine.Chat(ctx, s.chatModel, BuildConceptPrompt(story, keyword), conceptSchema())
	if err != nil {
		return "", fmt.Errorf("generating concept: %w", err)
	}
	var out struct {
		ConceptDetail string `json:"concept_detail"`
	}
	detail := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		detail = strings.TrimSpace(out.ConceptDetail)
	} else {
		s.logger.Warn("concept response is not JSON, using raw text", "error", err)
	}
	if detail == "" {
		return "", ErrEmptyResponse
	}

	s.remember(key, detail)
	return detail, nil
}

// Merge weaves detail for keyword into story.
func (s *Service) Merge(ctx context.Context, story, detail, keyword string) (string, error) {
	raw, err := s.engine.Chat(ctx, s.chatModel, BuildMergePrompt(story, detail, keyword), mergeSchema())
	if err != nil {
		return "", fmt.Errorf("merging story: %w", err)
	}
	var out struct {
		MergedStory string `json:"merged_story"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("failed to unmarshal merge response", "error", err, "response", raw)
		return "", fmt.Errorf("decoding merge response: %w", err)
	}
	merged := strings.TrimSpace(out.MergedStory)
	if merged == "" {
		return "", ErrEmptyResponse
	}
	return merged, nil
}

// Search suggests keywords for query.
func (s *Service) Search(ctx context.Context, query string) ([]string, error) {
	key := cacheKey("search", query)
	if v, ok := s.cached(key); ok {
		return append([]string{}, v.([]string)...), nil
	}

	raw, err := s.engine.Chat(ctx, s.chatModel, BuildSearchPrompt(query), searchSchema())
	if err != nil {
		return nil, fmt.Errorf("searching keywords: %w", err)
	}
	var out struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("failed to unmarshal search response", "error", err, "response", raw)
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	keywords := cleanKeywords(out.Keywords)
	s.remember(key, keywords)
	return append([]string{}, keywords...), nil
}

// cleanKeywords trims, drops blanks and case-insensitive duplicates, and
// caps the list at maxKeywords.
func cleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		norm := strings.ToLower(k)
		if k == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
