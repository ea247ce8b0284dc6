package ext2fs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymlinkInlineTarget(t *testing.T) {
	fs, _ := newTestImage(t)
	_, n, err := fs.CreateSymbolicLink("short/target", 0o777, 0, 0, 0)
	require.NoError(t, err)

	sym, ok := ToSymbolicLink(n)
	require.True(t, ok)
	require.Less(t, n.Size(), uint64(smallSymlinkLimit))

	target, err := sym.GetTarget()
	require.NoError(t, err)
	require.Equal(t, "short/target", target)

	// inline targets never touch a data block.
	blockID, err := n.getBlockID(0)
	require.NoError(t, err)
	require.Zero(t, blockID)
}

func TestSymlinkLongTarget(t *testing.T) {
	fs, _ := newTestImage(t)
	long := "a/very/long/symlink/target/path/that/does/not/fit/inline/at/all/sixty/bytes"
	require.GreaterOrEqual(t, len(long), smallSymlinkLimit)

	_, n, err := fs.CreateSymbolicLink(long, 0o777, 0, 0, 0)
	require.NoError(t, err)

	sym, ok := ToSymbolicLink(n)
	require.True(t, ok)
	require.GreaterOrEqual(t, n.Size(), uint64(smallSymlinkLimit))

	target, err := sym.GetTarget()
	require.NoError(t, err)
	require.Equal(t, long, target)

	blockID, err := n.getBlockID(0)
	require.NoError(t, err)
	require.NotZero(t, blockID)
}

func TestSymlinkLongToShortDoesNotFreeDataBlock(t *testing.T) {
	fs, _ := newTestImage(t)
	long := strings.Repeat("x", 100)
	_, n, err := fs.CreateSymbolicLink(long, 0o777, 0, 0, 0)
	require.NoError(t, err)

	blockID, err := n.getBlockID(0)
	require.NoError(t, err)
	require.NotZero(t, blockID)

	sym, _ := ToSymbolicLink(n)
	require.NoError(t, sym.SetTarget("short"))
	require.EqualValues(t, len("short"), n.Size())

	target, err := sym.GetTarget()
	require.NoError(t, err)
	require.Equal(t, "short", target)

	// the block backing the old long target is left allocated, a
	// known carry-over rather than a leak introduced here.
	require.True(t, fs.blockBitmaps[0].Get(uint64(blockID-1)))
}
