package threadpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/threadpool"
)

func TestExecuteReturnsResult(t *testing.T) {
	p, err := threadpool.New(threadpool.WithMinSize(1), threadpool.WithMaxSize(2))
	require.NoError(t, err)
	defer p.Close()

	h, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)

	v, err := h.BlockOn(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestExecutePropagatesTaskError(t *testing.T) {
	p, err := threadpool.New()
	require.NoError(t, err)
	defer p.Close()

	wantErr := errors.New("boom")
	h, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	require.NoError(t, err)

	_, err = h.BlockOn(context.Background())
	require.Equal(t, wantErr, err)
}

func TestTaskPanicSurfacesAsThreadPanic(t *testing.T) {
	var panicID uint64
	var panicPayload any
	var mu sync.Mutex

	p, err := threadpool.New(threadpool.WithOnPanic(func(id uint64, payload any) {
		mu.Lock()
		defer mu.Unlock()
		panicID = id
		panicPayload = payload
	}))
	require.NoError(t, err)
	defer p.Close()

	h, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		panic("task exploded")
	})
	require.NoError(t, err)

	_, err = h.BlockOn(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, corerr.KindOnly(corerr.ThreadPanic)))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "task exploded", panicPayload)
	_ = panicID
}

func TestPoolSurvivesTaskPanic(t *testing.T) {
	p, err := threadpool.New()
	require.NoError(t, err)
	defer p.Close()

	h1, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		panic("first task dies")
	})
	require.NoError(t, err)
	_, _ = h1.BlockOn(context.Background())

	h2, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "still alive", nil
	})
	require.NoError(t, err)
	v, err := h2.BlockOn(context.Background())
	require.NoError(t, err)
	require.Equal(t, "still alive", v)
}

func TestLiveCountStaysWithinMinMax(t *testing.T) {
	p, err := threadpool.New(threadpool.WithMinSize(1), threadpool.WithMaxSize(3), threadpool.WithQueueDepth(0))
	require.NoError(t, err)
	defer p.Close()

	require.LessOrEqual(t, p.LiveCount(), 3)
	require.GreaterOrEqual(t, p.LiveCount(), 0)

	release := make(chan struct{})
	var handles []*threadpool.Handle
	for i := 0; i < 3; i++ {
		h, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.Eventually(t, func() bool {
		return p.LiveCount() >= 1 && p.LiveCount() <= 3
	}, time.Second, time.Millisecond)

	close(release)
	for _, h := range handles {
		_, _ = h.BlockOn(context.Background())
	}

	require.Eventually(t, func() bool {
		return p.LiveCount() <= 1
	}, time.Second, time.Millisecond)
}

// TestPoolSizeRecoversAfterPanicWithFixedMinMax pins min=4, max=5 and
// confirms a panicking task neither wedges the pool nor permanently shrinks
// it below min: after the panic and one subsequent successful task, exactly
// 4 workers remain live.
func TestPoolSizeRecoversAfterPanicWithFixedMinMax(t *testing.T) {
	p, err := threadpool.New(threadpool.WithMinSize(4), threadpool.WithMaxSize(5))
	require.NoError(t, err)
	defer p.Close()

	require.Eventually(t, func() bool { return p.LiveCount() == 4 }, time.Second, time.Millisecond)

	h, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		panic("scenario 6 task explodes")
	})
	require.NoError(t, err)
	_, err = h.BlockOn(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, corerr.KindOnly(corerr.ThreadPanic)))

	h2, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	v, err := h2.BlockOn(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", v)

	require.Equal(t, 4, p.LiveCount())
}

func TestRejectedConfig(t *testing.T) {
	_, err := threadpool.New(threadpool.WithMinSize(5), threadpool.WithMaxSize(2))
	require.Error(t, err)
	require.True(t, errors.Is(err, corerr.KindOnly(corerr.IllegalArgument)))
}

func TestExecuteAfterCloseIsRejected(t *testing.T) {
	p, err := threadpool.New()
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, corerr.KindOnly(corerr.IllegalState)))
}

func TestConcurrentSubmitAllComplete(t *testing.T) {
	p, err := threadpool.New(threadpool.WithMinSize(2), threadpool.WithMaxSize(8))
	require.NoError(t, err)
	defer p.Close()

	const n = 100
	var completed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
				completed.Add(1)
				return nil, nil
			})
			require.NoError(t, err)
			_, _ = h.BlockOn(context.Background())
		}()
	}
	wg.Wait()
	require.EqualValues(t, n, completed.Load())
}
