package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/container"
	"github.com/joeycumines/go-evhcore/corerr"
)

func TestQueueFIFOOrder(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	q, err := container.NewQueue[int](cfg, 3, intCodec)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	require.NoError(t, q.Push(3))

	for _, want := range []int{1, 2, 3} {
		v, err := q.Pop()
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
}

func TestQueueFullAndEmpty(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	q, err := container.NewQueue[int](cfg, 1, intCodec)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(1))
	err = q.Push(2)
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.CapacityExceeded))

	_, err = q.Pop()
	require.NoError(t, err)

	_, err = q.Pop()
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.IllegalState))
}
