package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/container"
	"github.com/joeycumines/go-evhcore/corerr"
)

func TestStackLIFOOrder(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	s, err := container.NewStack[int](cfg, 3, intCodec)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))
	require.NoError(t, s.Push(3))

	for _, want := range []int{3, 2, 1} {
		v, err := s.Pop()
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
}

func TestStackFullAndEmpty(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	s, err := container.NewStack[int](cfg, 1, intCodec)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Push(1))
	err = s.Push(2)
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.CapacityExceeded))

	_, err = s.Pop()
	require.NoError(t, err)

	_, err = s.Pop()
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.IllegalState))
}
