package resource

import (
	"context"
	"errors"
	"fmt"
)

// StackLoader layers packs, first one that has the path wins.
type StackLoader []Loader

func (s StackLoader) GetBinary(ctx context.Context, path string) ([]byte, error) {
	for _, l := range s {
		b, err := l.GetBinary(ctx, path)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return b, err
	}
	return nil, fmt.Errorf("%s in %d packs: %w", path, len(s), ErrNotFound)
}

func (s StackLoader) GetText(ctx context.Context, path string) (string, error) {
	b, err := s.GetBinary(ctx, path)
	return string(b), err
}
