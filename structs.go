package ext2fs

import (
	"encoding/binary"
)

// Ext2Magic is the superblock signature at offset 56 that identifies an
// ext2-formatted image.
const Ext2Magic = 0xEF53

// InodeSize is the on-disk size of a single inode record.
const InodeSize = 128

// SuperblockSize is the on-disk size of the superblock record.
const SuperblockSize = 236

// GroupDescSize is the on-disk size of a single group descriptor record.
const GroupDescSize = 32

// RootInode is the fixed inode id of the filesystem root directory.
const RootInode uint32 = 2

// inode type nibble, high bits of Inode.Type.
const (
	typeFIFO   = 0x1000
	typeChar   = 0x2000
	typeDir    = 0x4000
	typeBlock  = 0x6000
	typeRegular = 0x8000
	typeSymlink = 0xA000
	typeSocket  = 0xC000
	typeMask    = 0xF000
)

// FileSystemState values for Superblock.State.
const (
	StateClean uint16 = 1
	StateError uint16 = 2
)

// ErrorBehaviour values for Superblock.ErrorBehaviour.
const (
	ErrorsIgnore           uint16 = 1
	ErrorsRemountReadOnly  uint16 = 2
	ErrorsPanic            uint16 = 3
)

// Superblock is the 236-byte filesystem-wide header at byte offset 1024 (or
// at the start of any backup copy's block). Field order and widths match
// the on-disk ext2 layout exactly; see the struct tags in the reference
// implementation's structs.hpp for the field-by-field derivation this
// mirrors.
type Superblock struct {
	InodeCount        uint32
	BlockCount        uint32
	ReservedBlocks    uint32
	FreeBlockCount    uint32
	FreeInodeCount    uint32
	FirstDataBlock    uint32
	BlockSizeLog      uint32
	FragSizeLog       uint32
	BlocksPerGroup    uint32
	FragsPerGroup     uint32
	InodesPerGroup    uint32
	LastMountTime     uint32
	LastWrittenTime   uint32
	MountCount        uint16
	MountCountMax     uint16
	Magic             uint16
	State             uint16
	ErrorBehaviour    uint16
	RevMinor          uint16
	LastCheck         uint32
	CheckInterval     uint32
	OSId              uint32
	RevMajor          uint32
	ResUID            uint16
	ResGID            uint16
	FirstInode        uint32
	InodeSize         uint16
	BlockGroupNr      uint16
	FeaturesOpt       OptFeatures
	FeaturesReq       ReqFeatures
	FeaturesRO        ROFeatures
	FilesystemID      [16]byte
	VolumeName        [16]byte
	LastMounted       [64]byte
	AlgoBitmap        uint32
	PreallocBlocks    uint8
	PreallocDirBlocks uint8
	padding1          uint16
	JournalUUID       [16]byte
	JournalInode      uint32
	JournalDev        uint32
	LastOrphan        uint32
}

// BlockSize returns 1024 << BlockSizeLog, the real block size in bytes.
func (s *Superblock) BlockSize() uint32 { return 1024 << s.BlockSizeLog }

// BlockGroupCount returns the number of block groups covering BlockCount
// blocks.
func (s *Superblock) BlockGroupCount() uint32 {
	if s.BlocksPerGroup == 0 {
		return 0
	}
	return (s.BlockCount + s.BlocksPerGroup - 1) / s.BlocksPerGroup
}

// LargeFiles reports whether the readonly-compat 64-bit file size feature
// is enabled.
func (s *Superblock) LargeFiles() bool { return s.FeaturesRO.Has(ROLargeFiles) }

// MarshalBinary encodes the superblock to its 236-byte on-disk form.
func (s *Superblock) MarshalBinary() []byte {
	b := make([]byte, SuperblockSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], s.InodeCount)
	le.PutUint32(b[4:], s.BlockCount)
	le.PutUint32(b[8:], s.ReservedBlocks)
	le.PutUint32(b[12:], s.FreeBlockCount)
	le.PutUint32(b[16:], s.FreeInodeCount)
	le.PutUint32(b[20:], s.FirstDataBlock)
	le.PutUint32(b[24:], s.BlockSizeLog)
	le.PutUint32(b[28:], s.FragSizeLog)
	le.PutUint32(b[32:], s.BlocksPerGroup)
	le.PutUint32(b[36:], s.FragsPerGroup)
	le.PutUint32(b[40:], s.InodesPerGroup)
	le.PutUint32(b[44:], s.LastMountTime)
	le.PutUint32(b[48:], s.LastWrittenTime)
	le.PutUint16(b[52:], s.MountCount)
	le.PutUint16(b[54:], s.MountCountMax)
	le.PutUint16(b[56:], s.Magic)
	le.PutUint16(b[58:], s.State)
	le.PutUint16(b[60:], s.ErrorBehaviour)
	le.PutUint16(b[62:], s.RevMinor)
	le.PutUint32(b[64:], s.LastCheck)
	le.PutUint32(b[68:], s.CheckInterval)
	le.PutUint32(b[72:], s.OSId)
	le.PutUint32(b[76:], s.RevMajor)
	le.PutUint16(b[80:], s.ResUID)
	le.PutUint16(b[82:], s.ResGID)
	le.PutUint32(b[84:], s.FirstInode)
	le.PutUint16(b[88:], s.InodeSize)
	le.PutUint16(b[90:], s.BlockGroupNr)
	le.PutUint32(b[92:], uint32(s.FeaturesOpt))
	le.PutUint32(b[96:], uint32(s.FeaturesReq))
	le.PutUint32(b[100:], uint32(s.FeaturesRO))
	copy(b[104:120], s.FilesystemID[:])
	copy(b[120:136], s.VolumeName[:])
	copy(b[136:200], s.LastMounted[:])
	le.PutUint32(b[200:], s.AlgoBitmap)
	b[204] = s.PreallocBlocks
	b[205] = s.PreallocDirBlocks
	le.PutUint16(b[206:], s.padding1)
	copy(b[208:224], s.JournalUUID[:])
	le.PutUint32(b[224:], s.JournalInode)
	le.PutUint32(b[228:], s.JournalDev)
	le.PutUint32(b[232:], s.LastOrphan)
	return b
}

// UnmarshalBinary decodes a 236-byte on-disk superblock record.
func (s *Superblock) UnmarshalBinary(b []byte) error {
	if len(b) < SuperblockSize {
		return ErrCorruptImage
	}
	le := binary.LittleEndian
	s.InodeCount = le.Uint32(b[0:])
	s.BlockCount = le.Uint32(b[4:])
	s.ReservedBlocks = le.Uint32(b[8:])
	s.FreeBlockCount = le.Uint32(b[12:])
	s.FreeInodeCount = le.Uint32(b[16:])
	s.FirstDataBlock = le.Uint32(b[20:])
	s.BlockSizeLog = le.Uint32(b[24:])
	s.FragSizeLog = le.Uint32(b[28:])
	s.BlocksPerGroup = le.Uint32(b[32:])
	s.FragsPerGroup = le.Uint32(b[36:])
	s.InodesPerGroup = le.Uint32(b[40:])
	s.LastMountTime = le.Uint32(b[44:])
	s.LastWrittenTime = le.Uint32(b[48:])
	s.MountCount = le.Uint16(b[52:])
	s.MountCountMax = le.Uint16(b[54:])
	s.Magic = le.Uint16(b[56:])
	s.State = le.Uint16(b[58:])
	s.ErrorBehaviour = le.Uint16(b[60:])
	s.RevMinor = le.Uint16(b[62:])
	s.LastCheck = le.Uint32(b[64:])
	s.CheckInterval = le.Uint32(b[68:])
	s.OSId = le.Uint32(b[72:])
	s.RevMajor = le.Uint32(b[76:])
	s.ResUID = le.Uint16(b[80:])
	s.ResGID = le.Uint16(b[82:])
	s.FirstInode = le.Uint32(b[84:])
	s.InodeSize = le.Uint16(b[88:])
	s.BlockGroupNr = le.Uint16(b[90:])
	s.FeaturesOpt = OptFeatures(le.Uint32(b[92:]))
	s.FeaturesReq = ReqFeatures(le.Uint32(b[96:]))
	s.FeaturesRO = ROFeatures(le.Uint32(b[100:]))
	copy(s.FilesystemID[:], b[104:120])
	copy(s.VolumeName[:], b[120:136])
	copy(s.LastMounted[:], b[136:200])
	s.AlgoBitmap = le.Uint32(b[200:])
	s.PreallocBlocks = b[204]
	s.PreallocDirBlocks = b[205]
	s.padding1 = le.Uint16(b[206:])
	copy(s.JournalUUID[:], b[208:224])
	s.JournalInode = le.Uint32(b[224:])
	s.JournalDev = le.Uint32(b[228:])
	s.LastOrphan = le.Uint32(b[232:])
	if s.Magic != Ext2Magic {
		return ErrCorruptImage
	}
	return nil
}

// GroupDescriptor is the 32-byte per-block-group record carrying bitmap and
// inode-table addresses plus per-group free counters.
type GroupDescriptor struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlockCount  uint16
	FreeInodeCount  uint16
	UsedDirCount    uint16
	padding         [14]byte
}

// MarshalBinary encodes the group descriptor to its 32-byte on-disk form.
func (g *GroupDescriptor) MarshalBinary() []byte {
	b := make([]byte, GroupDescSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], g.BlockBitmap)
	le.PutUint32(b[4:], g.InodeBitmap)
	le.PutUint32(b[8:], g.InodeTable)
	le.PutUint16(b[12:], g.FreeBlockCount)
	le.PutUint16(b[14:], g.FreeInodeCount)
	le.PutUint16(b[16:], g.UsedDirCount)
	copy(b[18:32], g.padding[:])
	return b
}

// UnmarshalBinary decodes a 32-byte on-disk group descriptor record.
func (g *GroupDescriptor) UnmarshalBinary(b []byte) error {
	if len(b) < GroupDescSize {
		return ErrCorruptImage
	}
	le := binary.LittleEndian
	g.BlockBitmap = le.Uint32(b[0:])
	g.InodeBitmap = le.Uint32(b[4:])
	g.InodeTable = le.Uint32(b[8:])
	g.FreeBlockCount = le.Uint16(b[12:])
	g.FreeInodeCount = le.Uint16(b[14:])
	g.UsedDirCount = le.Uint16(b[16:])
	copy(g.padding[:], b[18:32])
	return nil
}

// RawInode is the fixed 128-byte on-disk inode record. Its Type field packs
// kind (high nibble) and POSIX permission bits (low 12 bits); see mode.go.
type RawInode struct {
	Type          uint16
	UID           uint16
	Size          uint32
	Atime         uint32
	Ctime         uint32
	Mtime         uint32
	Dtime         uint32
	GID           uint16
	LinksCount    uint16
	Blocks        uint32 // count of 512-byte sectors, not ext2 blocks
	Flags         uint32
	OSD1          uint32
	BlockDirect   [12]uint32
	BlockIndirect [3]uint32
	Generation    uint32
	FileACL       uint32
	DirACL        uint32 // high 32 bits of Size for large regular files
	FragAddr      uint32
	OSD2          [12]byte
}

// MarshalBinary encodes the inode to its 128-byte on-disk form.
func (n *RawInode) MarshalBinary() []byte {
	b := make([]byte, InodeSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:], n.Type)
	le.PutUint16(b[2:], n.UID)
	le.PutUint32(b[4:], n.Size)
	le.PutUint32(b[8:], n.Atime)
	le.PutUint32(b[12:], n.Ctime)
	le.PutUint32(b[16:], n.Mtime)
	le.PutUint32(b[20:], n.Dtime)
	le.PutUint16(b[24:], n.GID)
	le.PutUint16(b[26:], n.LinksCount)
	le.PutUint32(b[28:], n.Blocks)
	le.PutUint32(b[32:], n.Flags)
	le.PutUint32(b[36:], n.OSD1)
	for i, v := range n.BlockDirect {
		le.PutUint32(b[40+i*4:], v)
	}
	for i, v := range n.BlockIndirect {
		le.PutUint32(b[88+i*4:], v)
	}
	le.PutUint32(b[100:], n.Generation)
	le.PutUint32(b[104:], n.FileACL)
	le.PutUint32(b[108:], n.DirACL)
	le.PutUint32(b[112:], n.FragAddr)
	copy(b[116:128], n.OSD2[:])
	return b
}

// UnmarshalBinary decodes a 128-byte on-disk inode record.
func (n *RawInode) UnmarshalBinary(b []byte) error {
	if len(b) < InodeSize {
		return ErrCorruptImage
	}
	le := binary.LittleEndian
	n.Type = le.Uint16(b[0:])
	n.UID = le.Uint16(b[2:])
	n.Size = le.Uint32(b[4:])
	n.Atime = le.Uint32(b[8:])
	n.Ctime = le.Uint32(b[12:])
	n.Mtime = le.Uint32(b[16:])
	n.Dtime = le.Uint32(b[20:])
	n.GID = le.Uint16(b[24:])
	n.LinksCount = le.Uint16(b[26:])
	n.Blocks = le.Uint32(b[28:])
	n.Flags = le.Uint32(b[32:])
	n.OSD1 = le.Uint32(b[36:])
	for i := range n.BlockDirect {
		n.BlockDirect[i] = le.Uint32(b[40+i*4:])
	}
	for i := range n.BlockIndirect {
		n.BlockIndirect[i] = le.Uint32(b[88+i*4:])
	}
	n.Generation = le.Uint32(b[100:])
	n.FileACL = le.Uint32(b[104:])
	n.DirACL = le.Uint32(b[108:])
	n.FragAddr = le.Uint32(b[112:])
	copy(n.OSD2[:], b[116:128])
	return nil
}

// DirEntryHead is the fixed 8-byte head of a directory entry. It is
// followed by NameLen bytes of name and then padding up to RecLen bytes.
type DirEntryHead struct {
	Inode   uint32
	RecLen  uint16
	NameLen uint8
	Type    uint8
}

const dirEntryHeadSize = 8

// file type byte values for DirEntryHead.Type, per req_feature_dir_entries_type.
const (
	DirEntryUnknown  uint8 = 0
	DirEntryRegular  uint8 = 1
	DirEntryDir      uint8 = 2
	DirEntryChar     uint8 = 3
	DirEntryBlock    uint8 = 4
	DirEntryFIFO     uint8 = 5
	DirEntrySocket   uint8 = 6
	DirEntrySymlink  uint8 = 7
)

func dirEntryTypeFor(rawType uint16) uint8 {
	switch rawType & typeMask {
	case typeRegular:
		return DirEntryRegular
	case typeDir:
		return DirEntryDir
	case typeChar:
		return DirEntryChar
	case typeBlock:
		return DirEntryBlock
	case typeFIFO:
		return DirEntryFIFO
	case typeSocket:
		return DirEntrySocket
	case typeSymlink:
		return DirEntrySymlink
	default:
		return DirEntryUnknown
	}
}
