package resource

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/maxsupermanhd/WebSchem/primitives"
)

var (
	ErrNotFound = errors.New("resource not found")
)

// Loader resolves logical pack paths (blockstates/stone.json, models/block/stone.json)
// to their contents. Implementations memoize lookups, missing ones included.
type Loader interface {
	GetText(ctx context.Context, path string) (string, error)
	GetBinary(ctx context.Context, path string) ([]byte, error)
}

const DefaultNamespace = "minecraft"

func BlockstatePath(id string) string {
	return "blockstates/" + primitives.StripNamespace(id) + ".json"
}

func ModelPath(ref string) string {
	return "models/" + primitives.StripNamespace(ref) + ".json"
}

func TexturePath(ref string) string {
	return "textures/" + primitives.StripNamespace(ref) + ".png"
}

func cleanPath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
}

type memoEntry struct {
	data []byte
	err  error
}

type memo struct {
	lock    sync.RWMutex
	entries map[string]memoEntry
}

func (m *memo) get(p string) (memoEntry, bool) {
	m.lock.RLock()
	e, ok := m.entries[p]
	m.lock.RUnlock()
	return e, ok
}

func (m *memo) put(p string, data []byte, err error) {
	m.lock.Lock()
	if m.entries == nil {
		m.entries = map[string]memoEntry{}
	}
	m.entries[p] = memoEntry{data: data, err: err}
	m.lock.Unlock()
}

func (m *memo) forget(p string) {
	m.lock.Lock()
	delete(m.entries, p)
	m.lock.Unlock()
}

func (m *memo) len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.entries)
}

// cached wraps a raw fetch with the memo. Only not-found results are remembered
// among failures, anything else may be transient.
func (m *memo) cached(ctx context.Context, p string, fetch func(string) ([]byte, error)) ([]byte, error) {
	p = cleanPath(p)
	if e, ok := m.get(p); ok {
		return e.data, e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fetch(p)
	if err == nil || errors.Is(err, ErrNotFound) {
		m.put(p, data, err)
	}
	return data, err
}
