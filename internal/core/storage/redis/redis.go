// Package redis stores blobs as redis strings under a key prefix.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zeusync/zeusave/internal/core/storage/interfaces"
)

var _ interfaces.ModTimeStorage = (*Store)(nil)

const scanBatch = 256

type Store struct {
	client *redis.Client
	prefix string
	owned  bool
}

// New dials addr. The client is closed by Close.
func New(ctx context.Context, addr, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	s := NewWithClient(client, prefix)
	s.owned = true
	return s, nil
}

// NewWithClient wraps a client owned by the caller.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) blobKey(key string) string  { return s.prefix + "blob:" + key }
func (s *Store) mtimeKey(key string) string { return s.prefix + "mtime:" + key }

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.blobKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	bz, err := s.client.Get(ctx, s.blobKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return nopCloser{bytes.NewReader(bz)}, nil
}

func (s *Store) Write(ctx context.Context, key string, fn func(w io.Writer) error) (int64, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return 0, err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.blobKey(key), buf.Bytes(), 0)
		pipe.Set(ctx, s.mtimeKey(key), time.Now().UnixNano(), 0)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.blobKey(key), s.mtimeKey(key)).Err()
}

func (s *Store) List(ctx context.Context, suffix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
		base   = s.blobKey("")
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, base+"*", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			name := strings.TrimPrefix(k, base)
			if strings.HasSuffix(name, suffix) {
				keys = append(keys, name)
			}
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (s *Store) ModTime(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, s.mtimeKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrNotFound, key)
	}
	return n, err
}

func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
