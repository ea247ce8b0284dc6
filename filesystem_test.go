package ext2fs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateFileStartsUnattached(t *testing.T) {
	fs, _ := newTestImage(t)
	id, n, err := fs.CreateFile(0o644, 1, 1, 0)
	require.NoError(t, err)
	require.NotZero(t, id)
	require.True(t, n.IsRegularFile())
	require.EqualValues(t, 0, n.LinksCount())
}

func TestCreateSymbolicLinkStoresTarget(t *testing.T) {
	fs, _ := newTestImage(t)
	_, n, err := fs.CreateSymbolicLink("/etc/hosts", 0o777, 0, 0, 0)
	require.NoError(t, err)
	require.True(t, n.IsSymlink())

	sym, ok := ToSymbolicLink(n)
	require.True(t, ok)
	target, err := sym.GetTarget()
	require.NoError(t, err)
	require.Equal(t, "/etc/hosts", target)
}

func TestCreateDirectoryWritesDotEntries(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)

	id, n, err := fs.CreateDirectory(root.ID(), 0o755, 0, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, n.LinksCount())

	dir, ok := ToDirectory(n)
	require.True(t, ok)
	entries, err := dir.ReadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ".", entries[0].Name)
	require.Equal(t, id, entries[0].Inode)
	require.Equal(t, "..", entries[1].Name)
	require.Equal(t, root.ID(), entries[1].Inode)

	reloadedRoot, err := fs.GetRoot()
	require.NoError(t, err)
	require.EqualValues(t, 3, reloadedRoot.LinksCount()) // "." + self-".." + child's ".."
}

func TestAllocBlockUpdatesCounters(t *testing.T) {
	fs, _ := newTestImage(t)
	sb := fs.Superblock()
	before := sb.FreeBlockCount

	id, err := fs.AllocBlock()
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Equal(t, before-1, fs.Superblock().FreeBlockCount)

	require.NoError(t, fs.FreeBlock(id))
	require.Equal(t, before, fs.Superblock().FreeBlockCount)
}

func TestAllocInodeUpdatesCounters(t *testing.T) {
	fs, _ := newTestImage(t)
	before := fs.Superblock().FreeInodeCount

	id, err := fs.AllocInode()
	require.NoError(t, err)

	require.Equal(t, before-1, fs.Superblock().FreeInodeCount)

	require.NoError(t, fs.FreeInode(id))
	require.Equal(t, before, fs.Superblock().FreeInodeCount)
}

func TestGroupDescTableOffsetRoundsUpToBlockBoundary(t *testing.T) {
	require.Equal(t, uint64(2048), groupDescTableOffset(1024, 1024))
	require.Equal(t, uint64(4096), groupDescTableOffset(1024, 4096))
}

func TestBackupGroups(t *testing.T) {
	require.Equal(t, []uint32{0}, backupGroups(1))
	require.Equal(t, []uint32{0, 1}, backupGroups(2))
	require.Equal(t, []uint32{0, 1, 3, 5, 7, 9, 25, 27, 49}, backupGroups(50))
}

func TestWriteSuperblockBackup(t *testing.T) {
	fs, dev := newTestImage(t)
	require.NoError(t, fs.WriteSuperblockBackup())

	_ = dev
	reopened, err := Open(dev)
	require.NoError(t, err)
	require.Equal(t, fs.Superblock().BlockCount, reopened.Superblock().BlockCount)
}
