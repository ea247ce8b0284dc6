package ext2fs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarioBuildListReadFollowRemove walks a small synthetic image through
// the operations a real mount would chain together: format, populate,
// list, read a file's contents through a symlink, then remove and recheck
// free-space accounting.
func TestScenarioBuildListReadFollowRemove(t *testing.T) {
	fs, dev := newTestImage(t)

	root, err := fs.GetRoot()
	require.NoError(t, err)
	rootDir, _ := ToDirectory(root)

	dirID, docs, err := fs.CreateDirectory(root.ID(), 0o755, 1000, 1000, 0)
	require.NoError(t, err)
	require.NoError(t, rootDir.Append("docs", docs))

	_, readme, err := fs.CreateFile(0o644, 1000, 1000, 0)
	require.NoError(t, err)
	content := []byte("hello from the docs directory\n")
	require.NoError(t, readme.Write(0, content))
	docsDir, _ := ToDirectory(docs)
	require.NoError(t, docsDir.Append("readme.txt", readme))
	require.EqualValues(t, 1, readme.LinksCount())

	_, link, err := fs.CreateSymbolicLink("/docs/readme.txt", 0o777, 1000, 1000, 0)
	require.NoError(t, err)
	require.NoError(t, rootDir.Append("latest", link))

	entries, err := rootDir.ReadEntries()
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "docs")
	require.Contains(t, names, "latest")

	resolvedID, err := fs.FindInode(root, "/latest", true)
	require.NoError(t, err)
	target, err := fs.GetInode(resolvedID)
	require.NoError(t, err)
	require.True(t, target.IsRegularFile())

	file := &File{target}
	var out bytes.Buffer
	require.NoError(t, file.Dump(&out))
	require.Equal(t, content, out.Bytes())

	freeBlocksBefore := fs.Superblock().FreeBlockCount
	freeInodesBefore := fs.Superblock().FreeInodeCount

	ok, err := docsDir.Remove("readme.txt")
	require.NoError(t, err)
	require.True(t, ok)

	require.Greater(t, fs.Superblock().FreeBlockCount, freeBlocksBefore)
	require.Equal(t, freeInodesBefore+1, fs.Superblock().FreeInodeCount)

	// after removal, a dangling symlink resolves to nothing rather than
	// erroring.
	resolvedID, err = fs.FindInode(root, "/latest", true)
	require.NoError(t, err)
	require.Zero(t, resolvedID)

	reopened, err := Open(dev)
	require.NoError(t, err)
	reopenedRoot, err := reopened.GetRoot()
	require.NoError(t, err)
	reopenedDir, ok := ToDirectory(reopenedRoot)
	require.True(t, ok)
	reopenedEntries, err := reopenedDir.ReadEntries()
	require.NoError(t, err)
	require.Len(t, reopenedEntries, len(entries))
	_ = dirID
}
