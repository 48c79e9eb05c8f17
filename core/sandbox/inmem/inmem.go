// Package inmem is a reference sandbox.Manager backed entirely by
// in-process memory, suitable for tests and for local/demo deployments
// that have no real container or filesystem overlay layer.
package inmem

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aletheialabs/hplan-core/core/sandbox"
)

// Manager is an in-memory sandbox.Manager. Handle "" (or any handle not
// yet seeded) branches an empty workspace; call Seed to populate a base
// handle's files before branching overlays from it.
type Manager struct {
	mu        sync.RWMutex
	bases     map[string]map[string]string
	overlays  map[string]map[string]string
	overlayOf map[string]string // overlay id -> base handle
}

// New constructs an empty in-memory sandbox manager.
func New() *Manager {
	return &Manager{
		bases:     make(map[string]map[string]string),
		overlays:  make(map[string]map[string]string),
		overlayOf: make(map[string]string),
	}
}

// Seed registers the file contents backing a base handle.
func (m *Manager) Seed(handle string, files map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(files))
	for k, v := range files {
		cp[k] = v
	}
	m.bases[handle] = cp
}

func (m *Manager) Branch(_ context.Context, handle string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.bases[handle]
	overlay := uuid.NewString()
	cp := make(map[string]string, len(base))
	for k, v := range base {
		cp[k] = v
	}
	m.overlays[overlay] = cp
	m.overlayOf[overlay] = handle
	return overlay, nil
}

func (m *Manager) Discard(_ context.Context, overlay string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overlays, overlay)
	delete(m.overlayOf, overlay)
	return nil
}

var ErrOverlayNotFound = fmt.Errorf("sandbox/inmem: overlay not found")
var ErrFileNotFound = fmt.Errorf("sandbox/inmem: file not found")

func (m *Manager) ReadFile(_ context.Context, overlay, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files, ok := m.overlays[overlay]
	if !ok {
		return "", ErrOverlayNotFound
	}
	contents, ok := files[path]
	if !ok {
		return "", ErrFileNotFound
	}
	return contents, nil
}

func (m *Manager) ListFiles(_ context.Context, overlay string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files, ok := m.overlays[overlay]
	if !ok {
		return nil, ErrOverlayNotFound
	}
	out := make([]string, 0, len(files))
	for k := range files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) GrepFiles(_ context.Context, overlay, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files, ok := m.overlays[overlay]
	if !ok {
		return nil, ErrOverlayNotFound
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("sandbox/inmem: invalid pattern: %w", err)
	}
	var out []string
	for path, contents := range files {
		if re.MatchString(contents) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ sandbox.Manager = (*Manager)(nil)
