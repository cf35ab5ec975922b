//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// xdgPath joins elem under $env, or under ~/fallback when env is unset.
func xdgPath(env, fallback string, elem ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(append([]string{"keyweave-data"}, elem[1:]...)...)
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "keyweave")
}

func configFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "keyweave", "config.json")
}

func apiKeyHint() string {
	return " or `keyweave config set-secret openai.api_key <key>`"
}

// fileStore keeps config as a flat JSON object of strings. Numbers written
// by hand into the file are accepted and read back in their decimal form.
type fileStore struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

func newPlatformStore() Store {
	s := &fileStore{path: configFilePath(), data: make(map[string]string)}
	if err := s.load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", s.path, err)
	}
	return s
}

func (s *fileStore) Location() string { return s.path }

func (s *fileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for k, v := range doc {
		switch val := v.(type) {
		case string:
			s.data[k] = val
		case float64:
			s.data[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			s.data[k] = strconv.FormatBool(val)
		default:
			return fmt.Errorf("key %s: unsupported value %v", k, v)
		}
	}
	return nil
}

// flush rewrites the file through a temp file so readers never see a
// partial document. Callers hold s.mu.
func (s *fileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return writeFileAtomic(s.path, s.data)
}

func (s *fileStore) Lookup(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fileStore) Save(key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	return s.flush()
}

func (s *fileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

func writeFileAtomic(path string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(out, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
