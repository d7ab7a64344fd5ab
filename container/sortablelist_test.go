package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/container"
)

func TestSortableListPushFrontBackAndToSlice(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	l, err := container.NewSortableList[int](cfg, intCodec)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.PushBack(2))
	require.NoError(t, l.PushBack(3))
	require.NoError(t, l.PushFront(1))
	require.Equal(t, 3, l.Len())

	items, err := l.ToSlice()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, items)
}

func TestSortableListSort(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	l, err := container.NewSortableList[int](cfg, intCodec)
	require.NoError(t, err)
	defer l.Close()

	for _, v := range []int{5, 3, 4, 1, 2} {
		require.NoError(t, l.PushBack(v))
	}

	require.NoError(t, l.Sort(func(a, b int) bool { return a < b }))

	items, err := l.ToSlice()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, items)
	require.Equal(t, 5, l.Len())
}

func TestSortableListSortUnstablePreservesSetMembership(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	l, err := container.NewSortableList[string](cfg, stringCodec)
	require.NoError(t, err)
	defer l.Close()

	for _, v := range []string{"banana", "apple", "cherry"} {
		require.NoError(t, l.PushBack(v))
	}

	require.NoError(t, l.SortUnstable(func(a, b string) bool { return a < b }))

	items, err := l.ToSlice()
	require.NoError(t, err)
	require.Equal(t, []string{"apple", "banana", "cherry"}, items)
}

func TestSortableListEmptyToSlice(t *testing.T) {
	cfg := container.Config{Allocator: newAlloc(64, 64)}
	l, err := container.NewSortableList[int](cfg, intCodec)
	require.NoError(t, err)
	defer l.Close()

	items, err := l.ToSlice()
	require.NoError(t, err)
	require.Empty(t, items)
}
