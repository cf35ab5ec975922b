// Package session persists the per-browser-session story state: the current
// text, the last diversity score and the last checkpointed text.
package session

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("session not found")

// Keys of the persisted state. All values are stored as strings.
const (
	KeyText         = "text"
	KeyGaugeValue   = "gaugeValue"
	KeyPreviousText = "previousText"
)

// Values is a partial or complete view of one session's persisted state.
type Values map[string]string

// Persister loads and saves the state of a single session.
type Persister interface {
	Load(ctx context.Context) (Values, error)
	Save(ctx context.Context, vals Values) error
}

// Memory is a Persister that keeps values in process memory.
type Memory struct {
	mu   sync.Mutex
	vals Values
}

// NewMemory returns an empty in-memory Persister.
func NewMemory() *Memory {
	return &Memory{vals: Values{}}
}

func (m *Memory) Load(_ context.Context) (Values, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.vals), nil
}

func (m *Memory) Save(_ context.Context, vals Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.vals, vals)
	return nil
}
