//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultsDomain = "com.keyweave.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "keyweave")
	}
	return "keyweave-data"
}

func apiKeyHint() string {
	return " or macOS Keychain (service: keyweave, account: openai_api_key)"
}

// defaultsStore keeps config in the UserDefaults domain via the defaults CLI.
type defaultsStore struct {
	domain string
}

func newPlatformStore() Store {
	return defaultsStore{domain: defaultsDomain}
}

func (s defaultsStore) Location() string {
	return "defaults domain " + s.domain
}

func (s defaultsStore) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (s defaultsStore) Lookup(key string) (string, bool, error) {
	out, err := s.run("read", s.domain, key)
	if err != nil {
		// defaults exits 1 when the domain or key does not exist.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, out)
	}
	return out, true, nil
}

func (s defaultsStore) Save(key, val string) error {
	if out, err := s.run("write", s.domain, key, "-string", val); err != nil {
		return fmt.Errorf("defaults write %s: %w (%s)", key, err, out)
	}
	return nil
}

func (s defaultsStore) Remove(key string) error {
	if _, ok, err := s.Lookup(key); err != nil || !ok {
		return err
	}
	if out, err := s.run("delete", s.domain, key); err != nil {
		return fmt.Errorf("defaults delete %s: %w (%s)", key, err, out)
	}
	return nil
}
