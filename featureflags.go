package ext2fs

import "strings"

// OptFeatures is the superblock's "optional features" bitmask: features
// that are not required to read or write the filesystem but that usually
// improve performance or add capability.
type OptFeatures uint32

const (
	OptPreallocBlocks OptFeatures = 1 << iota
	OptAFSInodes
	OptHasJournal
	OptExtendedInodes
	OptCanResize
	OptDirHash
)

func (f OptFeatures) String() string {
	var opt []string
	if f&OptPreallocBlocks != 0 {
		opt = append(opt, "PREALLOC_BLOCKS")
	}
	if f&OptAFSInodes != 0 {
		opt = append(opt, "AFS_INODES")
	}
	if f&OptHasJournal != 0 {
		opt = append(opt, "HAS_JOURNAL")
	}
	if f&OptExtendedInodes != 0 {
		opt = append(opt, "EXTENDED_INODES")
	}
	if f&OptCanResize != 0 {
		opt = append(opt, "CAN_RESIZE")
	}
	if f&OptDirHash != 0 {
		opt = append(opt, "DIR_HASH")
	}
	return strings.Join(opt, "|")
}

func (f OptFeatures) Has(what OptFeatures) bool { return f&what == what }

// ReqFeatures is the superblock's "required features" bitmask: an
// implementation that doesn't support all of these bits must refuse to
// mount the image at all.
type ReqFeatures uint32

const (
	ReqCompressed ReqFeatures = 1 << iota
	ReqDirEntriesType
	ReqReplayJournal
	ReqUsesJournal
)

func (f ReqFeatures) String() string {
	var opt []string
	if f&ReqCompressed != 0 {
		opt = append(opt, "COMPRESSED")
	}
	if f&ReqDirEntriesType != 0 {
		opt = append(opt, "DIR_ENTRIES_TYPE")
	}
	if f&ReqReplayJournal != 0 {
		opt = append(opt, "REPLAY_JOURNAL")
	}
	if f&ReqUsesJournal != 0 {
		opt = append(opt, "USES_JOURNAL")
	}
	return strings.Join(opt, "|")
}

func (f ReqFeatures) Has(what ReqFeatures) bool { return f&what == what }

// ROFeatures is the superblock's "readonly-compat features" bitmask: an
// implementation that doesn't support all of these bits may still read the
// image, but must not write to it.
type ROFeatures uint32

const (
	ROSparseSuper ROFeatures = 1 << iota
	ROLargeFiles
	ROBinTreeDir
)

func (f ROFeatures) String() string {
	var opt []string
	if f&ROSparseSuper != 0 {
		opt = append(opt, "SPARSE_SUPER")
	}
	if f&ROLargeFiles != 0 {
		opt = append(opt, "LARGE_FILES")
	}
	if f&ROBinTreeDir != 0 {
		opt = append(opt, "BIN_TREE_DIR")
	}
	return strings.Join(opt, "|")
}

func (f ROFeatures) Has(what ROFeatures) bool { return f&what == what }
