// Package local stores blobs as files in one directory.
package local

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/time/rate"

	"github.com/zeusync/zeusave/internal/core/storage/interfaces"
)

var _ interfaces.ModTimeStorage = (*Store)(nil)

var ErrInvalidKey = errors.New("local: invalid key")

const writeChunk = 64 << 10

type Store struct {
	dir     string
	limiter *rate.Limiter
}

// New creates dir if needed. bytesPerSec <= 0 disables write throttling.
func New(dir string, bytesPerSec int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	s := &Store{dir: dir}
	if bytesPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), max(bytesPerSec, writeChunk))
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadSeekCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotFound, key)
	}
	return f, err
}

func (s *Store) Write(ctx context.Context, key string, fn func(w io.Writer) error) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		if _, err := os.Stat(tmpName); err == nil {
			_ = os.Remove(tmpName)
		}
	}()

	cw := &countingWriter{ctx: ctx, dst: tmp, limiter: s.limiter}
	bw := bufio.NewWriterSize(cw, writeChunk)
	if err = fn(bw); err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, p); err != nil {
		return 0, err
	}
	return cw.n, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) List(_ context.Context, suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		keys = append(keys, name)
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) ModTime(_ context.Context, key string) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrNotFound, key)
	}
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}

func (s *Store) Close() error { return nil }

type countingWriter struct {
	ctx     context.Context
	dst     io.Writer
	limiter *rate.Limiter
	n       int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.limiter != nil {
		burst := w.limiter.Burst()
		for rest := len(p); rest > 0; rest -= burst {
			if err := w.limiter.WaitN(w.ctx, min(rest, burst)); err != nil {
				return 0, err
			}
		}
	}
	n, err := w.dst.Write(p)
	w.n += int64(n)
	return n, err
}
