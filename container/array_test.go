package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/container"
	"github.com/joeycumines/go-evhcore/corerr"
)

func TestArraySetGetRoundTrip(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	arr, err := container.NewArray[int](cfg, 4, intCodec)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, 10))
	require.NoError(t, arr.Set(3, 30))

	v, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, 10, v)

	v, err = arr.Get(3)
	require.NoError(t, err)
	require.Equal(t, 30, v)
}

func TestArrayUnsetSlotReadsZeroValue(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	arr, err := container.NewArray[int](cfg, 4, intCodec)
	require.NoError(t, err)
	defer arr.Close()

	v, err := arr.Get(1)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestArraySetOverwriteFreesOldChain(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	arr, err := container.NewArray[string](cfg, 2, stringCodec)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, "first"))
	require.NoError(t, arr.Set(0, "second"))

	v, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, "second", v)
}

func TestArrayOutOfBounds(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	arr, err := container.NewArray[int](cfg, 2, intCodec)
	require.NoError(t, err)
	defer arr.Close()

	_, err = arr.Get(5)
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.ArrayIndexOutOfBounds))

	err = arr.Set(-1, 1)
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.ArrayIndexOutOfBounds))
}

func TestArrayClear(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	arr, err := container.NewArray[int](cfg, 2, intCodec)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, 99))
	require.NoError(t, arr.Clear(0))

	v, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestNewArrayRejectsNonPositiveLength(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	_, err := container.NewArray[int](cfg, 0, intCodec)
	require.Error(t, err)
	require.True(t, errorsIs(err, corerr.IllegalArgument))
}
