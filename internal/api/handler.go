// Package api exposes workspaces over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kalambet/keyweave/internal/session"
	"github.com/kalambet/keyweave/internal/workspace"
)

// SessionHeader carries the session ID on every /v1 request.
const SessionHeader = "X-Session-ID"

const maxRequestBodySize = 1 << 20 // 1MB

// Sessions abstracts the session store operations the API needs.
type Sessions interface {
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Workspaces resolves the live workspace of a session.
type Workspaces interface {
	Get(ctx context.Context, sessionID string) (*workspace.Workspace, error)
	Forget(sessionID string)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Workspaces Workspaces
	Sessions   Sessions
	Token      string       // bearer token for /v1; empty disables auth
	Metrics    http.Handler // served at /metrics when non-nil
	Logger     *slog.Logger
}

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	workspaceKey
)

// NewHandler returns the workspace HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/session", handleCreateSession(deps))
		r.Delete("/session", handleDeleteSession(deps))

		r.Group(func(r chi.Router) {
			r.Use(withWorkspace(deps))
			r.Get("/workspace", handleSnapshot)
			r.Put("/story", handleSetStory)
			r.Post("/story/example/{n}", handleLoadExample)
			r.Post("/keywords", handleAddKeyword)
			r.Post("/keywords/{keyword}/toggle", handleToggle)
			r.Post("/keywords/{keyword}/open", handleOpen)
			r.Post("/keywords/{keyword}/insert", handleInsert)
			r.Post("/diversity", handleDiversity)
			r.Get("/search", handleSearch)
		})
	})

	return r
}

// withWorkspace resolves the session named by SessionHeader, starting a new
// one when the header is absent, and attaches its workspace to the request.
func withWorkspace(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := sessionID(w, r)
			if !ok {
				return
			}
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(SessionHeader, id)

			ctx := r.Context()
			if err := deps.Sessions.Touch(ctx, id); err != nil {
				deps.Logger.Warn("touching session", "session_id", id, "error", err)
			}
			ws, err := deps.Workspaces.Get(ctx, id)
			if err != nil {
				deps.Logger.Error("opening workspace", "session_id", id, "error", err)
				httpError(w, http.StatusInternalServerError, "api_error", "failed to open workspace")
				return
			}

			ctx = context.WithValue(ctx, sessionIDKey, id)
			ctx = context.WithValue(ctx, workspaceKey, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionID returns the validated header value, or "" when absent.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get(SessionHeader))
	if raw == "" {
		return "", true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid %s header", SessionHeader)
		return "", false
	}
	return id.String(), true
}

func workspaceFrom(ctx context.Context) *workspace.Workspace {
	ws, _ := ctx.Value(workspaceKey).(*workspace.Workspace)
	return ws
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		if err := deps.Sessions.Touch(r.Context(), id); err != nil {
			deps.Logger.Error("creating session", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create session")
			return
		}
		w.Header().Set(SessionHeader, id)
		writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		if id == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s header is required", SessionHeader)
			return
		}

		deps.Workspaces.Forget(id)
		if err := deps.Sessions.Delete(r.Context(), id); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "session not found")
				return
			}
			deps.Logger.Error("deleting session", "session_id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type workspaceView struct {
	workspace.Snapshot
	SessionID  string `json:"session_id"`
	GaugeInfo  string `json:"gauge_info"`
	SearchInfo string `json:"search_info"`
}

func handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	id, _ := r.Context().Value(sessionIDKey).(string)
	writeJSON(w, http.StatusOK, workspaceView{
		Snapshot:   ws.Snapshot(),
		SessionID:  id,
		GaugeInfo:  workspace.GaugeInfo,
		SearchInfo: workspace.SearchInfo,
	})
}

func handleSetStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
		return
	}
	ws := workspaceFrom(r.Context())
	ws.SetStory(r.Context(), *req.Text)
	writeJSON(w, http.StatusOK, map[string]string{"story": ws.Story()})
}

func handleLoadExample(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "example number must be an integer")
		return
	}
	ws := workspaceFrom(r.Context())
	if err := ws.LoadExample(r.Context(), n); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"story": ws.Story()})
}

func handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyword string `json:"keyword"`
	}
	if !decode(w, r, &req) {
		return
	}
	k, err := workspaceFrom(r.Context()).AddKeyword(req.Keyword)
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func handleToggle(w http.ResponseWriter, r *http.Request) {
	st, err := workspaceFrom(r.Context()).Toggle(r.Context(), keywordParam(r))
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func handleOpen(w http.ResponseWriter, r *http.Request) {
	st, err := workspaceFrom(r.Context()).Open(r.Context(), keywordParam(r))
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func handleInsert(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	label := keywordParam(r)
	if err := ws.Insert(r.Context(), label); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"story":              ws.Story(),
		"completed_keywords": ws.Completed(),
	})
}

func handleDiversity(w http.ResponseWriter, r *http.Request) {
	reading, err := workspaceFrom(r.Context()).CheckDiversity(r.Context())
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	keywords, err := workspaceFrom(r.Context()).Search(r.Context(), query)
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"label":    workspace.SearchLabel(query),
		"keywords": keywords,
	})
}

// keywordParam returns the {keyword} path segment. chi routes on RawPath
// when the request has one, leaving the segment escaped; otherwise the
// segment is already decoded and must be used as is.
func keywordParam(r *http.Request) string {
	seg := chi.URLParam(r, "keyword")
	if r.URL.RawPath == "" {
		return seg
	}
	if s, err := url.PathUnescape(seg); err == nil {
		return s
	}
	return seg
}

// writeWorkspaceError maps workspace errors onto HTTP statuses. Anything
// unrecognised is a collaborator failure.
func writeWorkspaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workspace.ErrEmptyStory),
		errors.Is(err, workspace.ErrEmptyQuery),
		errors.Is(err, workspace.ErrEmptyKeyword):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, workspace.ErrUnknownKeyword),
		errors.Is(err, workspace.ErrNoSuchExample):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, workspace.ErrMergeInFlight),
		errors.Is(err, workspace.ErrTooltipClosed),
		errors.Is(err, workspace.ErrDetailUnavailable),
		errors.Is(err, workspace.ErrKeywordDropped):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusGatewayTimeout, "timeout_error", "%v", err)
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
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

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
