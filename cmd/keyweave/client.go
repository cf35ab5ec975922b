package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/keyweave/internal/api"
	"github.com/kalambet/keyweave/internal/config"
)

// apiClient talks to a running keyweave server. When sessionFile is set it
// receives the session ID the server assigns.
type apiClient struct {
	baseURL     string
	token       string
	sessionID   string
	sessionFile string
	httpClient  *http.Client
}

var newAPIClient = func(cmd *cobra.Command) (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	c := &apiClient{
		baseURL:     fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:       cfg.Server.APIToken,
		sessionFile: sessionFilePath(cfg.Storage.DataDir),
		// Merges and concept generation can take as long as the collaborator timeouts.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		c.sessionID = id
		c.sessionFile = ""
	} else {
		c.sessionID = readSessionFile(c.sessionFile)
	}
	return c, nil
}

func sessionFilePath(dataDir string) string {
	return filepath.Join(dataDir, "cli-session")
}

func readSessionFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeSessionFile(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(id+"\n"), 0o600)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionID != "" {
		req.Header.Set(api.SessionHeader, c.sessionID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is keyweave serve running? (%w)", err)
	}
	c.rememberSession(resp)
	return resp, nil
}

// rememberSession adopts the session the server assigned, saving it so the
// next invocation continues in the same workspace.
func (c *apiClient) rememberSession(resp *http.Response) {
	id := resp.Header.Get(api.SessionHeader)
	if id == "" || id == c.sessionID {
		return
	}
	c.sessionID = id
	if c.sessionFile == "" {
		return
	}
	if err := writeSessionFile(c.sessionFile, id); err != nil {
		printWarning("could not save session ID: %v", err)
	}
}

func (c *apiClient) forgetSession() {
	c.sessionID = ""
	if c.sessionFile != "" {
		os.Remove(c.sessionFile)
	}
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func keywordPath(label, action string) string {
	return "/v1/keywords/" + url.PathEscape(label) + "/" + action
}

// decodeJSON decodes a successful response into v, or turns an error
// envelope into an error carrying its message.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var env struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
