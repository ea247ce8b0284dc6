package ext2fs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectoryAppendAndLookup(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)
	dir, ok := ToDirectory(root)
	require.True(t, ok)

	fileID, file, err := fs.CreateFile(0o644, 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, dir.Append("hello.txt", file))

	entry, found, err := dir.Lookup("hello.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, fileID, entry.Inode)
	require.Equal(t, dirEntryTypeFor(file.data.Type), entry.Type)

	_, found, err = dir.Lookup("missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDirectoryAppendRejectsEmptyName(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)
	dir, _ := ToDirectory(root)

	_, file, err := fs.CreateFile(0o644, 0, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, dir.Append("", file), ErrInvalidName)
}

func TestDirectoryRemoveRejectsDotEntries(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)
	_, sub, err := fs.CreateDirectory(root.ID(), 0o755, 0, 0, 0)
	require.NoError(t, err)
	dir, _ := ToDirectory(sub)

	ok, err := dir.Remove(".")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = dir.Remove("..")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDirectoryRemoveRejectsNonEmptySubdirectory(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)
	rootDir, _ := ToDirectory(root)

	subID, sub, err := fs.CreateDirectory(root.ID(), 0o755, 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, rootDir.Append("sub", sub))

	_, grandchild, err := fs.CreateDirectory(subID, 0o755, 0, 0, 0)
	require.NoError(t, err)
	subDir, _ := ToDirectory(sub)
	require.NoError(t, subDir.Append("grandchild", grandchild))

	ok, err := rootDir.Remove("sub")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDirectoryRemoveIsNoopForMissingName(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)
	dir, _ := ToDirectory(root)

	ok, err := dir.Remove("does-not-exist")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDirectoryRemoveFreesInodeOnLastLink(t *testing.T) {
	fs, _ := newTestImage(t)
	root, err := fs.GetRoot()
	require.NoError(t, err)
	dir, _ := ToDirectory(root)

	fileID, file, err := fs.CreateFile(0o644, 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, dir.Append("orphan.txt", file))
	require.EqualValues(t, 1, file.LinksCount())

	before := fs.Superblock().FreeInodeCount
	ok, err := dir.Remove("orphan.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, before+1, fs.Superblock().FreeInodeCount)

	_, found, err := dir.Lookup("orphan.txt")
	require.NoError(t, err)
	require.False(t, found)

	freed, err := fs.GetInode(fileID)
	require.NoError(t, err)
	require.Equal(t, fs.now(), freed.data.Dtime)
}
