package resource

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ZipLoader serves assets/<namespace>/ of a client jar or a zipped resource pack.
type ZipLoader struct {
	logger *log.Logger
	name   string
	files  map[string]*zip.File
	closer io.Closer
	memo   memo
}

func OpenZip(logger *log.Logger, path string) (*ZipLoader, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	l := newZipLoader(logger, path, &r.Reader)
	l.closer = r
	return l, nil
}

func NewZipLoader(logger *log.Logger, name string, r io.ReaderAt, size int64) (*ZipLoader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return newZipLoader(logger, name, zr), nil
}

func newZipLoader(logger *log.Logger, name string, zr *zip.Reader) *ZipLoader {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &ZipLoader{
		logger: logger,
		name:   name,
		files:  map[string]*zip.File{},
	}
	prefix := "assets/" + DefaultNamespace + "/"
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		l.files[strings.TrimPrefix(f.Name, prefix)] = f
	}
	logger.Printf("Indexed %d assets in %s", len(l.files), name)
	return l
}

func (l *ZipLoader) fetch(p string) ([]byte, error) {
	f, ok := l.files[p]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", p, l.name, ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (l *ZipLoader) GetBinary(ctx context.Context, path string) ([]byte, error) {
	return l.memo.cached(ctx, path, l.fetch)
}

func (l *ZipLoader) GetText(ctx context.Context, path string) (string, error) {
	b, err := l.GetBinary(ctx, path)
	return string(b), err
}

func (l *ZipLoader) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
