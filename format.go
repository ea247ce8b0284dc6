package ext2fs

import (
	"time"

	"github.com/google/uuid"
)

// formatConfig collects FormatOption settings before Format lays out the
// image.
type formatConfig struct {
	blockSize  uint32
	inodeCount uint32
	volumeName string
	largeFiles bool
	clock      func() time.Time
}

// FormatOption configures Format.
type FormatOption func(*formatConfig)

// WithFormatBlockSize sets the block size; must be 1024, 2048, or 4096.
// Defaults to 1024.
func WithFormatBlockSize(n uint32) FormatOption {
	return func(c *formatConfig) { c.blockSize = n }
}

// WithFormatInodeCount sets the total inode count. Defaults to 128.
func WithFormatInodeCount(n uint32) FormatOption {
	return func(c *formatConfig) { c.inodeCount = n }
}

// WithFormatVolumeName sets the volume label.
func WithFormatVolumeName(name string) FormatOption {
	return func(c *formatConfig) { c.volumeName = name }
}

// WithFormatLargeFiles enables the readonly-compat 64-bit file size
// feature.
func WithFormatLargeFiles() FormatOption {
	return func(c *formatConfig) { c.largeFiles = true }
}

// WithFormatClock overrides the clock used to stamp the superblock and the
// root inode's timestamps. Defaults to time.Now.
func WithFormatClock(now func() time.Time) FormatOption {
	return func(c *formatConfig) { c.clock = now }
}

// reservedInodeCount is the number of low inode ids this package reserves
// without backing them with any real object, matching the conventional
// ext2 first_unreserved_inode == 11 (this engine implements none of the
// quota/journal/resize objects those ids traditionally name; it reserves
// the numbers so a real fsck-built image and one Format builds agree on
// where ordinary inodes start).
const reservedInodeCount = 10

// blockSizeLog returns n such that 1024<<n == size, and false if size is
// not a valid ext2 block size.
func blockSizeLog(size uint32) (uint32, bool) {
	for n, s := uint32(0), uint32(1024); s <= 4096; n, s = n+1, s<<1 {
		if s == size {
			return n, true
		}
	}
	return 0, false
}

// Format lays down a minimal single-block-group ext2 image over dev:
// superblock, group descriptor table, block and inode bitmaps, an empty
// inode table, and a root directory inode with "." and "..". It returns a
// Filesystem already opened over the freshly written image.
//
// Format is not a general mke2fs: it never creates more than one block
// group, reserved GDT blocks, or any ext3/ext4 feature, matching this
// engine's Non-goals. It exists because no binary reference image ships
// with this package, so this package's own tests (and anything embedding
// this engine that wants to create a blank image rather than open an
// existing one) need a way to build one from scratch.
func Format(dev Device, blockCount uint32, opts ...Option) (*Filesystem, error) {
	return format(dev, blockCount, nil, opts...)
}

// FormatWith is Format with FormatOptions controlling block size, inode
// count, and feature flags.
func FormatWith(dev Device, blockCount uint32, fopts []FormatOption, opts ...Option) (*Filesystem, error) {
	return format(dev, blockCount, fopts, opts...)
}

func format(dev Device, blockCount uint32, fopts []FormatOption, opts ...Option) (*Filesystem, error) {
	cfg := formatConfig{blockSize: 1024, inodeCount: 128, clock: time.Now}
	for _, o := range fopts {
		o(&cfg)
	}
	log2, ok := blockSizeLog(cfg.blockSize)
	if !ok {
		return nil, ErrCorruptImage
	}

	const sbOffset = 1024
	gdtOffset := groupDescTableOffset(sbOffset, cfg.blockSize)
	gdtBlocks := (GroupDescSize + cfg.blockSize - 1) / cfg.blockSize

	blockBitmapBlock := uint32(gdtOffset/uint64(cfg.blockSize)) + gdtBlocks
	inodeBitmapBlock := blockBitmapBlock + 1
	inodeTableBlocks := (cfg.inodeCount*InodeSize + cfg.blockSize - 1) / cfg.blockSize
	inodeTableStart := inodeBitmapBlock + 1
	firstDataBlockID := inodeTableStart + inodeTableBlocks // first block id free for file data

	if blockCount <= firstDataBlockID {
		return nil, ErrCorruptImage
	}

	now := uint32(cfg.clock().Unix())

	sb := Superblock{
		InodeCount:      cfg.inodeCount,
		BlockCount:      blockCount,
		FreeBlockCount:  blockCount - firstDataBlockID,
		FreeInodeCount:  cfg.inodeCount - reservedInodeCount,
		FirstDataBlock:  1,
		BlockSizeLog:    log2,
		FragSizeLog:     log2,
		BlocksPerGroup:  blockCount,
		FragsPerGroup:   blockCount,
		InodesPerGroup:  cfg.inodeCount,
		LastMountTime:   now,
		LastWrittenTime: now,
		MountCountMax:   20,
		Magic:           Ext2Magic,
		State:           StateClean,
		ErrorBehaviour:  ErrorsRemountReadOnly,
		RevMajor:        1,
		FirstInode:      reservedInodeCount + 1,
		InodeSize:       InodeSize,
		FeaturesReq:     ReqDirEntriesType,
	}
	if cfg.largeFiles {
		sb.FeaturesRO |= ROLargeFiles
	}
	id := uuid.New()
	copy(sb.FilesystemID[:], id[:])
	copy(sb.VolumeName[:], cfg.volumeName)

	if err := dev.WriteAt(sbOffset, sb.MarshalBinary()); err != nil {
		return nil, err
	}

	gd := GroupDescriptor{
		BlockBitmap:    blockBitmapBlock,
		InodeBitmap:    inodeBitmapBlock,
		InodeTable:     inodeTableStart,
		FreeBlockCount: uint16(blockCount - firstDataBlockID),
		FreeInodeCount: uint16(cfg.inodeCount - reservedInodeCount),
	}
	if err := dev.WriteAt(gdtOffset, gd.MarshalBinary()); err != nil {
		return nil, err
	}

	blockBitmap := NewBitmap(dev, uint64(blockBitmapBlock)*uint64(cfg.blockSize), uint64(blockCount))
	for b := uint32(1); b < firstDataBlockID; b++ {
		blockBitmap.Set(uint64(b-1), true)
	}
	if err := blockBitmap.Save(); err != nil {
		return nil, err
	}

	inodeBitmap := NewBitmap(dev, uint64(inodeBitmapBlock)*uint64(cfg.blockSize), uint64(cfg.inodeCount))
	for i := uint64(0); i < reservedInodeCount; i++ {
		if i == 1 {
			continue // inode id 2 (root) is allocated normally below, not pre-marked
		}
		inodeBitmap.Set(i, true)
	}
	if err := inodeBitmap.Save(); err != nil {
		return nil, err
	}

	if err := zeroDevice(dev, uint64(inodeTableStart)*uint64(cfg.blockSize), inodeTableBlocks*cfg.blockSize); err != nil {
		return nil, err
	}

	fs, err := Open(dev, opts...)
	if err != nil {
		return nil, err
	}

	rootID, _, err := fs.CreateDirectory(RootInode, 0o755, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	if rootID != RootInode {
		return nil, ErrCorruptImage
	}
	return fs, nil
}
