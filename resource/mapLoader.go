package resource

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MapLoader serves resources from memory, keyed by logical path.
type MapLoader struct {
	Files map[string][]byte
	reads atomic.Int64
}

func NewMapLoader(text map[string]string) *MapLoader {
	l := &MapLoader{Files: make(map[string][]byte, len(text))}
	for k, v := range text {
		l.Files[k] = []byte(v)
	}
	return l
}

func (l *MapLoader) GetBinary(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.reads.Add(1)
	b, ok := l.Files[cleanPath(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return b, nil
}

func (l *MapLoader) GetText(ctx context.Context, path string) (string, error) {
	b, err := l.GetBinary(ctx, path)
	return string(b), err
}

// Reads counts lookups, hits and misses alike.
func (l *MapLoader) Reads() int64 {
	return l.reads.Load()
}
