package concurrent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOutRunsEveryJob(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		var ran atomic.Int32
		jobs := make([]func(context.Context) error, 5)
		for i := range jobs {
			jobs[i] = func(context.Context) error {
				ran.Add(1)
				return nil
			}
		}

		require.NoError(t, FanOut(context.Background(), parallel, jobs...))
		assert.Equal(t, int32(5), ran.Load(), "parallel=%v", parallel)
	}
}

func TestFanOutSequentialOrder(t *testing.T) {
	var order []int
	jobs := []func(context.Context) error{
		func(context.Context) error { order = append(order, 0); return nil },
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return nil },
	}

	require.NoError(t, FanOut(context.Background(), false, jobs...))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestFanOutJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	err := FanOut(context.Background(), false,
		func(context.Context) error { return errA },
		func(context.Context) error { return errB },
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	err = FanOut(context.Background(), true,
		func(context.Context) error { return nil },
		func(context.Context) error { return errB },
	)
	assert.ErrorIs(t, err, errB)
}

func TestFanOutWaitsForBackgroundJobs(t *testing.T) {
	var finished atomic.Bool
	err := FanOut(context.Background(), true,
		func(context.Context) error { return nil },
		func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	)
	require.NoError(t, err)
	assert.True(t, finished.Load())
}

func TestParallelMapPreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6}
	out, err := ParallelMap(context.Background(), in, 2, func(_ context.Context, v int) (int, error) {
		return v * v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25, 36}, out)
}

func TestFuture(t *testing.T) {
	release := make(chan struct{})
	f := Go(func() (string, error) {
		<-release
		return "done", nil
	})
	assert.False(t, f.Done())

	close(release)
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.True(t, f.Done())

	r := Resolved(3, nil)
	assert.True(t, r.Done())
}

func TestFutureRecoversPanic(t *testing.T) {
	f := Go(func() (int, error) { panic("boom") })
	_, err := f.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFutureWaitContext(t *testing.T) {
	f := Go(func() (int, error) {
		time.Sleep(time.Second)
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.WaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLaneRunsInSubmissionOrder(t *testing.T) {
	lane := NewLane(4)
	defer lane.Close()

	var (
		mu    sync.Mutex
		order []int
		live  atomic.Int32
		peak  atomic.Int32
	)
	futures := make([]*Future[int], 0, 10)
	for i := range 10 {
		futures = append(futures, Submit(lane, func() (int, error) {
			n := live.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			live.Add(-1)
			return i, nil
		}))
	}

	for i, f := range futures {
		v, err := f.Wait()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.Equal(t, int32(1), peak.Load(), "lane jobs never overlap")
}

func TestLaneClosed(t *testing.T) {
	lane := NewLane(1)
	lane.Close()
	lane.Close()

	_, err := Submit(lane, func() (int, error) { return 1, nil }).Wait()
	assert.ErrorIs(t, err, ErrLaneClosed)
}
