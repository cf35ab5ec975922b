//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errSecretNotFound = errors.New("secret not found")

// secretsFile maps service -> account -> value.
type secretsFile map[string]map[string]string

func secretsFilePath() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "keyweave", "secrets.json")
}

func readSecrets(path string) (secretsFile, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return secretsFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f secretsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f == nil {
		f = secretsFile{}
	}
	return f, nil
}

func keychainGet(service, account string) ([]byte, error) {
	f, err := readSecrets(secretsFilePath())
	if err != nil {
		return nil, err
	}
	val, ok := f[service][account]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", service, account, errSecretNotFound)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	path := secretsFilePath()
	f, err := readSecrets(path)
	if err != nil {
		return err
	}
	if f[service] == nil {
		f[service] = make(map[string]string)
	}
	f[service][account] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	return writeFileAtomic(path, f)
}
