package ext2fs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, groups int, perGroup uint32) allocator {
	t.Helper()
	dev := NewMemDevice(uint64(groups) * 1024)
	bitmaps := make([]*Bitmap, groups)
	for g := range bitmaps {
		bitmaps[g] = NewBitmap(dev, uint64(g)*1024, uint64(perGroup))
	}
	return allocator{bitmaps: bitmaps, elementsPerGroup: perGroup, notFree: ErrNoFreeBlock}
}

func TestAllocatorAllocFree(t *testing.T) {
	a := newTestAllocator(t, 2, 8)

	elem, group, err := a.alloc(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), elem)
	require.Equal(t, uint32(0), group)

	elem2, group2, err := a.alloc(0)
	require.NoError(t, err)
	require.Equal(t, uint32(1), elem2)
	require.Equal(t, uint32(0), group2)

	freedGroup, err := a.free(elem)
	require.NoError(t, err)
	require.Equal(t, group, freedGroup)

	elem3, group3, err := a.alloc(0)
	require.NoError(t, err)
	require.Equal(t, elem, elem3)
	require.Equal(t, group, group3)
}

func TestAllocatorExhaustion(t *testing.T) {
	a := newTestAllocator(t, 1, 4)
	for i := 0; i < 4; i++ {
		_, _, err := a.alloc(0)
		require.NoError(t, err)
	}
	_, _, err := a.alloc(0)
	require.ErrorIs(t, err, ErrNoFreeBlock)
}

func TestAllocatorGroupLocalFirst(t *testing.T) {
	a := newTestAllocator(t, 2, 4)
	// exhaust group 0
	for i := 0; i < 4; i++ {
		_, _, err := a.alloc(0)
		require.NoError(t, err)
	}
	// related still points into group 0; allocator must wrap to group 1.
	elem, group, err := a.alloc(1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), group)
	require.Equal(t, uint32(4), elem)
}

func TestAllocatorNoGroups(t *testing.T) {
	a := allocator{notFree: ErrNoFreeInode}
	_, _, err := a.alloc(0)
	require.ErrorIs(t, err, ErrNoFreeInode)
}
