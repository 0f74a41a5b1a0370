package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// DirLoader serves an unpacked resource pack. Root may be the pack itself
// (containing assets/) or the namespace directory.
type DirLoader struct {
	logger *log.Logger
	root   string
	memo   memo
}

func NewDirLoader(logger *log.Logger, root string) *DirLoader {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	nsroot := filepath.Join(root, "assets", DefaultNamespace)
	if st, err := os.Stat(nsroot); err == nil && st.IsDir() {
		root = nsroot
	}
	return &DirLoader{logger: logger, root: root}
}

func (l *DirLoader) fetch(p string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(p)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s in %s: %w", p, l.root, ErrNotFound)
	}
	return b, err
}

func (l *DirLoader) GetBinary(ctx context.Context, path string) ([]byte, error) {
	return l.memo.cached(ctx, path, l.fetch)
}

func (l *DirLoader) GetText(ctx context.Context, path string) (string, error) {
	b, err := l.GetBinary(ctx, path)
	return string(b), err
}

// Watch drops memoized entries of files that change on disk until ctx is done.
func (l *DirLoader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	err = filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add watcher paths: %w", err)
	}
	l.logger.Printf("Watching resources in %s", l.root)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				l.logger.Println("Resource watcher failed to read from events channel")
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						l.logger.Printf("Failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}
			rel, err := filepath.Rel(l.root, event.Name)
			if err != nil {
				continue
			}
			l.memo.forget(filepath.ToSlash(rel))
		case err, ok := <-watcher.Errors:
			if !ok {
				l.logger.Println("Resource watcher failed to read from error channel")
				return nil
			}
			l.logger.Println("Resource watcher error:", err)
		case <-ctx.Done():
			l.logger.Println("Resource watcher stopped")
			return nil
		}
	}
}
