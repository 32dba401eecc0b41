package redis

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/storage/interfaces"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "zeusave:"), mr
}

func put(t *testing.T, s *Store, key, body string) {
	t.Helper()
	_, err := s.Write(context.Background(), key, func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	})
	require.NoError(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	put(t, s, "slot.sav", "payload")
	assert.True(t, mr.Exists("zeusave:blob:slot.sav"))

	ok, err := s.Exists(ctx, "slot.sav")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Open(ctx, "slot.sav")
	require.NoError(t, err)
	_, err = rc.Seek(3, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "load", string(rest))

	mt, err := s.ModTime(ctx, "slot.sav")
	require.NoError(t, err)
	assert.Positive(t, mt)

	require.NoError(t, s.Delete(ctx, "slot.sav"))
	_, err = s.Open(ctx, "slot.sav")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.False(t, mr.Exists("zeusave:mtime:slot.sav"))
}

func TestStore_WriteErrorStoresNothing(t *testing.T) {
	s, mr := newTestStore(t)
	_, err := s.Write(context.Background(), "x.sav", func(w io.Writer) error {
		return errors.New("nope")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("zeusave:blob:x.sav"))
}

func TestStore_List(t *testing.T) {
	s, mr := newTestStore(t)
	put(t, s, "b.sav", "1")
	put(t, s, "a.sav", "1")
	put(t, s, "a.png", "1")
	require.NoError(t, mr.Set("other:blob:c.sav", "1"))

	keys, err := s.List(context.Background(), ".sav")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.sav", "b.sav"}, keys)
}
