package ext2fs

import (
	"log"
	"time"
)

// Filesystem owns the Device, the superblock, the group descriptor table,
// and every block/inode bitmap (one pair per group). It is the sole entry
// point for allocation and inode lookup; Inode views borrow it
// non-exclusively but any mutation that allocates or frees a block or inode
// routes back through here.
//
// A Filesystem is not safe for concurrent use, and two Filesystem instances
// must never be open on the same image at once: each keeps its own,
// unsynchronised copy of every bitmap in memory.
type Filesystem struct {
	dev Device

	sb        Superblock
	sbOffset  uint64
	gdt       []GroupDescriptor
	gdtOffset uint64

	blockBitmaps []*Bitmap
	inodeBitmaps []*Bitmap

	blockAlloc allocator
	inodeAlloc allocator

	log   *log.Logger
	clock func() time.Time
}

// Open constructs a Filesystem over dev and loads it.
func Open(dev Device, opts ...Option) (*Filesystem, error) {
	fs := &Filesystem{
		dev:      dev,
		sbOffset: 1024,
		log:      log.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(fs); err != nil {
			return nil, err
		}
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// groupDescTableOffset rounds the end of the superblock record up to the
// next block boundary, where the group descriptor table begins.
func groupDescTableOffset(sbOffset uint64, blockSize uint32) uint64 {
	end := sbOffset + SuperblockSize
	bs := uint64(blockSize)
	return ((end + bs - 1) / bs) * bs
}

func (fs *Filesystem) load() error {
	raw, err := deviceReadStruct(fs.dev, fs.sbOffset, SuperblockSize)
	if err != nil {
		return err
	}
	if err := fs.sb.UnmarshalBinary(raw); err != nil {
		return err
	}
	if fs.sb.InodesPerGroup == 0 || fs.sb.BlocksPerGroup == 0 {
		return ErrCorruptImage
	}

	blockSize := fs.sb.BlockSize()
	fs.gdtOffset = groupDescTableOffset(fs.sbOffset, blockSize)

	numGroups := fs.sb.BlockGroupCount()
	fs.gdt = make([]GroupDescriptor, numGroups)
	fs.blockBitmaps = make([]*Bitmap, numGroups)
	fs.inodeBitmaps = make([]*Bitmap, numGroups)

	offset := fs.gdtOffset
	for g := uint32(0); g < numGroups; g++ {
		raw, err := deviceReadStruct(fs.dev, offset, GroupDescSize)
		if err != nil {
			return err
		}
		if err := fs.gdt[g].UnmarshalBinary(raw); err != nil {
			return err
		}
		offset += GroupDescSize

		bb, err := LoadBitmap(fs.dev, uint64(fs.gdt[g].BlockBitmap)*uint64(blockSize), uint64(fs.sb.BlocksPerGroup))
		if err != nil {
			return ErrCorruptImage
		}
		fs.blockBitmaps[g] = bb

		ib, err := LoadBitmap(fs.dev, uint64(fs.gdt[g].InodeBitmap)*uint64(blockSize), uint64(fs.sb.InodesPerGroup))
		if err != nil {
			return ErrCorruptImage
		}
		fs.inodeBitmaps[g] = ib
	}

	fs.blockAlloc = allocator{bitmaps: fs.blockBitmaps, elementsPerGroup: fs.sb.BlocksPerGroup, notFree: ErrNoFreeBlock}
	fs.inodeAlloc = allocator{bitmaps: fs.inodeBitmaps, elementsPerGroup: fs.sb.InodesPerGroup, notFree: ErrNoFreeInode}

	fs.log.Printf("ext2fs: loaded image, %d groups, block size %d, %d/%d inodes free, %d/%d blocks free",
		numGroups, blockSize, fs.sb.FreeInodeCount, fs.sb.InodeCount, fs.sb.FreeBlockCount, fs.sb.BlockCount)
	return nil
}

// BlockSize returns the filesystem's block size in bytes.
func (fs *Filesystem) BlockSize() uint32 { return fs.sb.BlockSize() }

// LargeFiles reports whether the 64-bit regular-file size feature is set.
func (fs *Filesystem) LargeFiles() bool { return fs.sb.LargeFiles() }

// Superblock returns a copy of the in-memory superblock.
func (fs *Filesystem) Superblock() Superblock { return fs.sb }

// ToAddress converts a block id and an in-block byte offset to an absolute
// device byte offset.
func (fs *Filesystem) ToAddress(blockID uint32, blockOffset uint32) uint64 {
	return uint64(blockID)*uint64(fs.BlockSize()) + uint64(blockOffset)
}

func (fs *Filesystem) saveSuperblock() error {
	return fs.dev.WriteAt(fs.sbOffset, fs.sb.MarshalBinary())
}

func (fs *Filesystem) saveGroupDesc(group uint32) error {
	offset := fs.gdtOffset + uint64(group)*GroupDescSize
	return fs.dev.WriteAt(offset, fs.gdt[group].MarshalBinary())
}

// inodeAddress computes the absolute device byte offset of inode id's
// record from its (group, index) decomposition.
func (fs *Filesystem) inodeAddress(id uint32) uint64 {
	q := id - 1
	group := q / fs.sb.InodesPerGroup
	index := q % fs.sb.InodesPerGroup
	blockSize := fs.BlockSize()
	inodeSize := uint64(fs.sb.InodeSize)
	blockID := uint32((index*uint32(inodeSize))/blockSize) + fs.gdt[group].InodeTable
	blockOffset := uint32((uint64(index)*inodeSize)%uint64(blockSize))
	return fs.ToAddress(blockID, blockOffset)
}

// GetInode loads inode id's 128-byte record from the inode table.
func (fs *Filesystem) GetInode(id uint32) (*Inode, error) {
	raw, err := deviceReadStruct(fs.dev, fs.inodeAddress(id), InodeSize)
	if err != nil {
		return nil, err
	}
	n := &Inode{fs: fs, id: id}
	if err := n.data.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return n, nil
}

// GetRoot returns the root directory inode (id 2).
func (fs *Filesystem) GetRoot() (*Inode, error) { return fs.GetInode(RootInode) }

// AllocBlock allocates a free block, preferring locality near related. With
// no argument it defaults to 1, matching the reference implementation's own
// default, which starts the scan at the very first data block and so
// defeats locality for a filesystem's first few allocations. Callers with a
// better locality hint (a file's previous block, a new inode's containing
// directory) should pass it explicitly.
func (fs *Filesystem) AllocBlock(related ...uint32) (uint32, error) {
	r := uint32(1)
	if len(related) > 0 {
		r = related[0]
	}
	elem, group, err := fs.blockAlloc.alloc(r - 1)
	if err != nil {
		return 0, err
	}
	id := elem + 1
	fs.gdt[group].FreeBlockCount--
	fs.sb.FreeBlockCount--
	if err := fs.saveGroupDesc(group); err != nil {
		return 0, err
	}
	if err := fs.saveSuperblock(); err != nil {
		return 0, err
	}
	return id, nil
}

// FreeBlock releases block id back to its group's bitmap.
func (fs *Filesystem) FreeBlock(id uint32) error {
	group, err := fs.blockAlloc.free(id - 1)
	if err != nil {
		return err
	}
	fs.gdt[group].FreeBlockCount++
	fs.sb.FreeBlockCount++
	if err := fs.saveGroupDesc(group); err != nil {
		return err
	}
	return fs.saveSuperblock()
}

// AllocInode allocates a free inode, preferring locality near related.
func (fs *Filesystem) AllocInode(related ...uint32) (uint32, error) {
	r := uint32(1)
	if len(related) > 0 {
		r = related[0]
	}
	elem, group, err := fs.inodeAlloc.alloc(r - 1)
	if err != nil {
		return 0, err
	}
	id := elem + 1
	fs.gdt[group].FreeInodeCount--
	fs.sb.FreeInodeCount--
	if err := fs.saveGroupDesc(group); err != nil {
		return 0, err
	}
	if err := fs.saveSuperblock(); err != nil {
		return 0, err
	}
	return id, nil
}

// FreeInode releases inode id back to its group's bitmap.
func (fs *Filesystem) FreeInode(id uint32) error {
	group, err := fs.inodeAlloc.free(id - 1)
	if err != nil {
		return err
	}
	fs.gdt[group].FreeInodeCount++
	fs.sb.FreeInodeCount++
	if err := fs.saveGroupDesc(group); err != nil {
		return err
	}
	return fs.saveSuperblock()
}

func (fs *Filesystem) now() uint32 { return uint32(fs.clock().Unix()) }

// newInode allocates and zero-initialises an inode record, the bulk
// create-inode constructor shared by CreateFile, CreateSymbolicLink, and
// CreateDirectory. LinksCount is left at 0; callers that attach the inode
// to a directory entry are responsible for bumping it.
func (fs *Filesystem) newInode(kind uint16, perm uint16, uid, gid uint16, flags uint32, related uint32) (uint32, *Inode, error) {
	id, err := fs.AllocInode(related)
	if err != nil {
		return 0, nil, err
	}
	now := fs.now()
	n := &Inode{fs: fs, id: id}
	n.data = RawInode{
		Type:       kind | (perm &^ typeMask),
		UID:        uid,
		GID:        gid,
		Flags:      flags,
		Atime:      now,
		Ctime:      now,
		Mtime:      now,
		LinksCount: 0,
	}
	if err := n.save(); err != nil {
		return 0, nil, err
	}
	return id, n, nil
}

// CreateFile allocates a new regular-file inode. The returned inode is
// unattached, with LinksCount 0; the caller must add a directory entry
// (which bumps LinksCount to 1) before the file is reachable.
func (fs *Filesystem) CreateFile(perm uint16, uid, gid uint16, flags uint32) (uint32, *Inode, error) {
	return fs.newInode(typeRegular, perm, uid, gid, flags, 1)
}

// CreateSymbolicLink allocates a new symlink inode and stores target,
// taking the fast inline path if it is short enough. The returned inode is
// unattached, with LinksCount 0, exactly like CreateFile.
func (fs *Filesystem) CreateSymbolicLink(target string, perm uint16, uid, gid uint16, flags uint32) (uint32, *Inode, error) {
	id, n, err := fs.newInode(typeSymlink, perm, uid, gid, flags, 1)
	if err != nil {
		return 0, nil, err
	}
	sym, _ := ToSymbolicLink(n)
	if err := sym.SetTarget(target); err != nil {
		return 0, nil, err
	}
	return id, n, nil
}

// CreateDirectory allocates a new directory inode with "." and ".." entries
// already written, under parentID. Unlike CreateFile and CreateSymbolicLink,
// the returned inode is not left unattached: a directory is never meaningful
// without its self-referencing "." entry, so CreateDirectory writes both
// entries and sets LinksCount itself (1 for ".", plus one more on parentID
// for the new directory's ".."), rather than leaving that to the caller.
func (fs *Filesystem) CreateDirectory(parentID uint32, perm uint16, uid, gid uint16, flags uint32) (uint32, *Inode, error) {
	id, n, err := fs.newInode(typeDir, perm, uid, gid, flags, parentID)
	if err != nil {
		return 0, nil, err
	}
	dir := n.Directory()
	entries := []DirEntry{
		{Inode: id, Type: DirEntryDir, Name: "."},
		{Inode: parentID, Type: DirEntryDir, Name: ".."},
	}
	if err := dir.writeEntries(entries); err != nil {
		return 0, nil, err
	}
	n.data.LinksCount = 1 // the "." entry makes the directory self-referencing
	if parentID == id {
		n.data.LinksCount++ // root is its own parent: ".." also self-references
	}
	if err := n.save(); err != nil {
		return 0, nil, err
	}
	if parentID != id {
		parent, err := fs.GetInode(parentID)
		if err != nil {
			return 0, nil, err
		}
		parent.data.LinksCount++ // the new directory's ".." entry
		if err := parent.save(); err != nil {
			return 0, nil, err
		}
	}
	return id, n, nil
}

// backupGroups returns the block-group indices that carry a backup
// superblock/GDT copy under ext2's sparse-superblock rule: groups 0, 1, and
// any power of 3, 5, or 7 that is in range.
func backupGroups(numGroups uint32) []uint32 {
	if numGroups == 0 {
		return nil
	}
	set := map[uint32]bool{0: true}
	if numGroups > 1 {
		set[1] = true
	}
	for _, base := range []uint32{3, 5, 7} {
		for p := base; p < numGroups; p *= base {
			set[p] = true
		}
	}
	groups := make([]uint32, 0, len(set))
	for g := range set {
		groups = append(groups, g)
	}
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j-1] > groups[j]; j-- {
			groups[j-1], groups[j] = groups[j], groups[j-1]
		}
	}
	return groups
}

// WriteSuperblockBackup writes the primary superblock and group descriptor
// table to every backup location.
func (fs *Filesystem) WriteSuperblockBackup() error {
	blockSize := uint64(fs.BlockSize())
	gdtBytes := make([]byte, 0, len(fs.gdt)*GroupDescSize)
	for i := range fs.gdt {
		gdtBytes = append(gdtBytes, fs.gdt[i].MarshalBinary()...)
	}
	sbBytes := fs.sb.MarshalBinary()

	for _, g := range backupGroups(fs.sb.BlockGroupCount()) {
		if g == 0 {
			continue // the primary copy is already in place
		}
		sbBlock := uint64(g)*uint64(fs.sb.BlocksPerGroup) + 1
		if err := fs.dev.WriteAt(sbBlock*blockSize, sbBytes); err != nil {
			return err
		}
		if err := fs.dev.WriteAt((sbBlock+1)*blockSize, gdtBytes); err != nil {
			return err
		}
	}
	return nil
}
