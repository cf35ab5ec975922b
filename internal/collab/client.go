// Package collab talks to the four external collaborator services: concept
// generation, story merge, sentence similarity and keyword search.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint paths, relative to the collaborator base URL.
const (
	PathConcept    = "/concept-generate"
	PathMerge      = "/story-merge"
	PathSimilarity = "/sentence-similarity"
	PathSearch     = "/search-keywords"
)

const maxErrorBody = 4 << 10

// StatusError is returned when a collaborator answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client calls the collaborator services over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *Metrics
}

// New creates a Client targeting baseURL. A nil httpClient uses a client
// without an overall timeout; callers bound each call with their context.
// metrics may be nil.
func New(baseURL string, httpClient *http.Client, metrics *Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    metrics,
	}
}

type conceptRequest struct {
	Story   string `json:"story"`
	Keyword string `json:"keyword"`
}

type conceptResponse struct {
	ConceptDetail *string `json:"concept_detail"`
}

// GenerateConcept asks for a short elaboration of keyword in the context of story.
func (c *Client) GenerateConcept(ctx context.Context, story, keyword string) (string, error) {
	var resp conceptResponse
	if err := c.post(ctx, PathConcept, conceptRequest{Story: story, Keyword: keyword}, &resp); err != nil {
		return "", err
	}
	if resp.ConceptDetail == nil {
		return "", fmt.Errorf("%s: response missing concept_detail", PathConcept)
	}
	return *resp.ConceptDetail, nil
}

type mergeRequest struct {
	Story         string `json:"story"`
	ConceptDetail string `json:"concept_detail"`
	Keyword       string `json:"keyword"`
}

type mergeResponse struct {
	MergedStory *string `json:"merged_story"`
}

// MergeStory weaves detail for keyword into story and returns the new text.
func (c *Client) MergeStory(ctx context.Context, story, detail, keyword string) (string, error) {
	var resp mergeResponse
	req := mergeRequest{Story: story, ConceptDetail: detail, Keyword: keyword}
	if err := c.post(ctx, PathMerge, req, &resp); err != nil {
		return "", err
	}
	if resp.MergedStory == nil {
		return "", fmt.Errorf("%s: response missing merged_story", PathMerge)
	}
	return *resp.MergedStory, nil
}

type similarityRequest struct {
	Origin string `json:"origin"`
	New    string `json:"new"`
}

type similarityResponse struct {
	Similarity *float64 `json:"similarity"`
}

// Similarity returns a 0-100 similarity score between origin and updated.
func (c *Client) Similarity(ctx context.Context, origin, updated string) (float64, error) {
	var resp similarityResponse
	if err := c.post(ctx, PathSimilarity, similarityRequest{Origin: origin, New: updated}, &resp); err != nil {
		return 0, err
	}
	if resp.Similarity == nil {
		return 0, fmt.Errorf("%s: response missing similarity", PathSimilarity)
	}
	return *resp.Similarity, nil
}

type searchResponse struct {
	Keywords []string `json:"keywords"`
}

// SearchKeywords returns candidate keywords related to query.
func (c *Client) SearchKeywords(ctx context.Context, query string) ([]string, error) {
	path := PathSearch + "?query=" + url.QueryEscape(query)
	var resp searchResponse
	if err := c.do(ctx, PathSearch, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Keywords == nil {
		return []string{}, nil
	}
	return resp.Keywords, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, endpoint, http.MethodPost, endpoint, body, out)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.observe(endpoint, start, err) }()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling %s request: %w", endpoint, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}
