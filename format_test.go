package ext2fs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestImage(t *testing.T) (*Filesystem, Device) {
	t.Helper()
	dev := NewMemDevice(4 * 1024 * 1024)
	clock := fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fs, err := FormatWith(dev, 4096, []FormatOption{WithFormatClock(clock)}, WithClock(clock))
	require.NoError(t, err)
	return fs, dev
}

func TestFormatProducesMountableImage(t *testing.T) {
	fs, dev := newTestImage(t)

	sb := fs.Superblock()
	require.Equal(t, uint32(Ext2Magic), uint32(sb.Magic))
	require.Equal(t, uint32(1024), sb.BlockSize())
	require.Equal(t, uint32(1), sb.BlockGroupCount())

	root, err := fs.GetRoot()
	require.NoError(t, err)
	require.True(t, root.IsDirectory())
	require.EqualValues(t, 2, root.LinksCount()) // "." plus its own ".." (root is its own parent)

	reopened, err := Open(dev)
	require.NoError(t, err)
	reopenedRoot, err := reopened.GetRoot()
	require.NoError(t, err)
	require.True(t, reopenedRoot.IsDirectory())
}

func TestFormatRejectsUndersizedImage(t *testing.T) {
	dev := NewMemDevice(1024)
	_, err := Format(dev, 4)
	require.ErrorIs(t, err, ErrCorruptImage)
}

func TestFormatLargeFiles(t *testing.T) {
	dev := NewMemDevice(4 * 1024 * 1024)
	fs, err := FormatWith(dev, 4096, []FormatOption{WithFormatLargeFiles()})
	require.NoError(t, err)
	require.True(t, fs.LargeFiles())
}
