package ext2fs

import (
	"io/fs"
)

// Inode wraps one 128-byte on-disk inode record plus a non-owning handle
// back to the Filesystem that can allocate or free blocks on its behalf,
// an explicit parameter rather than cyclic ownership. Directory, File, and
// Symlink are typed *views* over the same Inode value: they carry no state
// beyond it and are constructed by the guarded
// ToDirectory/ToFile/ToSymbolicLink conversions.
type Inode struct {
	fs   *Filesystem
	id   uint32
	data RawInode
}

// ID returns the inode's 1-based id.
func (n *Inode) ID() uint32 { return n.id }

func (n *Inode) IsDirectory() bool   { return n.data.Type&typeMask == typeDir }
func (n *Inode) IsRegularFile() bool { return n.data.Type&typeMask == typeRegular }
func (n *Inode) IsSymlink() bool     { return n.data.Type&typeMask == typeSymlink }

// Mode returns the inode's kind and permission bits as an fs.FileMode.
func (n *Inode) Mode() fs.FileMode { return UnixToMode(uint32(n.data.Type)) }

func (n *Inode) UID() uint16        { return n.data.UID }
func (n *Inode) GID() uint16        { return n.data.GID }
func (n *Inode) LinksCount() uint16 { return n.data.LinksCount }

// Size returns the inode's byte size: 64-bit (size | dir_acl<<32) for
// regular files under the large_files feature, otherwise the plain 32-bit
// field.
func (n *Inode) Size() uint64 {
	if n.IsRegularFile() && n.fs.LargeFiles() {
		return uint64(n.data.DirACL)<<32 | uint64(n.data.Size)
	}
	return uint64(n.data.Size)
}

func (n *Inode) save() error {
	return n.fs.dev.WriteAt(n.fs.inodeAddress(n.id), n.data.MarshalBinary())
}

// tableBlockID returns the block id that holds this inode's own record,
// used as the locality hint ("related") when allocating an indirect block
// for this inode, matching the reference implementation's
// get_inode_block_id().
func (n *Inode) tableBlockID() uint32 {
	return uint32(n.fs.inodeAddress(n.id) / uint64(n.fs.BlockSize()))
}

// blockCuts returns (idsPerBlock, idp1Cut, idp2Cut, idp3Cut), the logical
// block-index boundaries of the direct/singly/doubly/triply indirection
// ranges.
func (n *Inode) blockCuts() (p, idp1, idp2, idp3 uint64) {
	p = uint64(n.fs.BlockSize() / 4)
	idp1 = p + 12
	idp2 = p*p + idp1
	idp3 = p*p*p + idp2
	return
}

// getIndirectBlock walks count levels of indirection starting from block,
// reading one pointer per level, the same recursive shape as the reference
// implementation's get_indirect_block.
func (n *Inode) getIndirectBlock(block uint32, index uint64, idsPerBlock uint64, count int) (uint32, error) {
	if count > 0 {
		count--
		var err error
		block, err = n.getIndirectBlock(block, index/idsPerBlock, idsPerBlock, count)
		if err != nil {
			return 0, err
		}
		index = index % idsPerBlock
	}
	if block == 0 {
		return 0, nil
	}
	var buf [4]byte
	if err := n.fs.dev.ReadAt(n.fs.ToAddress(block, uint32(index*4)), buf[:]); err != nil {
		return 0, err
	}
	return le32(buf[:]), nil
}

// getBlockID resolves a logical block index to a physical block id. A zero
// result means "no data allocated here".
func (n *Inode) getBlockID(blockIndex uint64) (uint32, error) {
	if blockIndex < 12 {
		return n.data.BlockDirect[blockIndex], nil
	}
	p, idp1, idp2, idp3 := n.blockCuts()
	var block uint32
	var index uint64
	var count int
	switch {
	case blockIndex < idp1:
		block = n.data.BlockIndirect[0]
		count = 0
		index = blockIndex - 12
	case blockIndex < idp2:
		block = n.data.BlockIndirect[1]
		count = 1
		index = blockIndex - idp1
	case blockIndex < idp3:
		block = n.data.BlockIndirect[2]
		count = 2
		index = blockIndex - idp2
	default:
		return 0, ErrOutOfRange
	}
	if block == 0 {
		return 0, nil
	}
	return n.getIndirectBlock(block, index, p, count)
}

// getOrCreateIndirectBlock is the write-side counterpart of
// getIndirectBlock: it allocates and zeroes any missing interior block
// along the chain, using the inode's own table block as the locality hint.
func (n *Inode) getOrCreateIndirectBlock(block uint32, index uint64, idsPerBlock uint64, count int) (uint32, error) {
	if count <= 0 {
		return block, nil
	}
	count--
	block, err := n.getOrCreateIndirectBlock(block, index/idsPerBlock, idsPerBlock, count)
	if err != nil {
		return 0, err
	}
	index = index % idsPerBlock

	var buf [4]byte
	if err := n.fs.dev.ReadAt(n.fs.ToAddress(block, uint32(index*4)), buf[:]); err != nil {
		return 0, err
	}
	result := le32(buf[:])
	if result == 0 {
		result, err = n.fs.AllocBlock(n.tableBlockID())
		if err != nil {
			return 0, err
		}
		if err := zeroDevice(n.fs.dev, n.fs.ToAddress(result, 0), n.fs.BlockSize()); err != nil {
			return 0, err
		}
		putLE32(buf[:], result)
		if err := n.fs.dev.WriteAt(n.fs.ToAddress(block, uint32(index*4)), buf[:]); err != nil {
			return 0, err
		}
	}
	return result, nil
}

// setBlockID installs newBlockID at logical index blockIndex, allocating
// and zeroing any indirect block along the chain that does not yet exist.
func (n *Inode) setBlockID(blockIndex uint64, newBlockID uint32) error {
	if blockIndex < 12 {
		n.data.BlockDirect[blockIndex] = newBlockID
		return n.save()
	}

	p, idp1, idp2, idp3 := n.blockCuts()
	var block uint32
	var index uint64
	var count int
	var slot *uint32
	switch {
	case blockIndex < idp1:
		slot = &n.data.BlockIndirect[0]
		count = 0
		index = blockIndex - 12
	case blockIndex < idp2:
		slot = &n.data.BlockIndirect[1]
		count = 1
		index = blockIndex - idp1
	case blockIndex < idp3:
		slot = &n.data.BlockIndirect[2]
		count = 2
		index = blockIndex - idp2
	default:
		return ErrOutOfRange
	}

	if *slot == 0 {
		newBlock, err := n.fs.AllocBlock(n.tableBlockID())
		if err != nil {
			return err
		}
		if err := zeroDevice(n.fs.dev, n.fs.ToAddress(newBlock, 0), n.fs.BlockSize()); err != nil {
			return err
		}
		*slot = newBlock
		if err := n.save(); err != nil {
			return err
		}
	}
	block = *slot

	if count > 0 {
		var err error
		block, err = n.getOrCreateIndirectBlock(block, index/p, p, count)
		if err != nil {
			return err
		}
		index = index % p
	}

	var buf [4]byte
	putLE32(buf[:], newBlockID)
	return n.fs.dev.WriteAt(n.fs.ToAddress(block, uint32(index*4)), buf[:])
}

// Read fills buf from the inode's data stream at offset. It performs no
// bounds check against Size(); callers bound reads themselves.
func (n *Inode) Read(offset uint64, buf []byte) error {
	bufOffset := 0
	length := len(buf)
	blockSize := uint64(n.fs.BlockSize())
	for length > 0 {
		blockIndex := offset / blockSize
		blockOffset := uint32(offset % blockSize)
		chunk := int(blockSize - uint64(blockOffset))
		if chunk > length {
			chunk = length
		}
		blockID, err := n.getBlockID(blockIndex)
		if err != nil {
			return err
		}
		if blockID == 0 {
			for i := 0; i < chunk; i++ {
				buf[bufOffset+i] = 0
			}
		} else if err := n.fs.dev.ReadAt(n.fs.ToAddress(blockID, blockOffset), buf[bufOffset:bufOffset+chunk]); err != nil {
			return err
		}
		bufOffset += chunk
		offset += uint64(chunk)
		length -= chunk
	}
	return nil
}

// Write writes buf to the inode's data stream at offset, growing the file
// (via SetSize) if the write extends past the current size. It fails with
// ErrOutOfRange if offset is strictly past the current size.
func (n *Inode) Write(offset uint64, buf []byte) error {
	if offset > n.Size() {
		return ErrOutOfRange
	}
	if offset+uint64(len(buf)) > n.Size() {
		if err := n.SetSize(offset + uint64(len(buf))); err != nil {
			return err
		}
	}

	bufOffset := 0
	length := len(buf)
	blockSize := uint64(n.fs.BlockSize())
	for length > 0 {
		blockIndex := offset / blockSize
		blockOffset := uint32(offset % blockSize)
		chunk := int(blockSize - uint64(blockOffset))
		if chunk > length {
			chunk = length
		}
		blockID, err := n.getBlockID(blockIndex)
		if err != nil {
			return err
		}
		if err := n.fs.dev.WriteAt(n.fs.ToAddress(blockID, blockOffset), buf[bufOffset:bufOffset+chunk]); err != nil {
			return err
		}
		bufOffset += chunk
		offset += uint64(chunk)
		length -= chunk
	}
	return nil
}

// SetSize resizes the inode, allocating or freeing blocks as needed.
//
// Shrinking does not free interior indirect blocks, only leaf data blocks.
// This mirrors the reference implementation exactly and is a known,
// documented limitation, not an oversight introduced here.
func (n *Inode) SetSize(newSize uint64) error {
	oldSize := n.Size()
	if n.IsRegularFile() && n.fs.LargeFiles() {
		n.data.Size = uint32(newSize)
		n.data.DirACL = uint32(newSize >> 32)
	} else {
		if newSize > 0xFFFFFFFF {
			return ErrFileTooLarge
		}
		n.data.Size = uint32(newSize)
	}
	n.data.Blocks = uint32(newSize / 512)

	blockSize := uint64(n.fs.BlockSize())
	if newSize < oldSize {
		blockIndex := newSize/blockSize + 1
		blockID, err := n.getBlockID(blockIndex)
		if err != nil {
			return err
		}
		for blockID != 0 {
			if err := n.fs.FreeBlock(blockID); err != nil {
				return err
			}
			if err := n.setBlockID(blockIndex, 0); err != nil {
				return err
			}
			blockIndex++
			blockID, err = n.getBlockID(blockIndex)
			if err != nil {
				return err
			}
		}
	} else if newSize > oldSize {
		blockIndexStart := oldSize / blockSize
		blockIndexEnd := newSize / blockSize
		blockID, err := n.getBlockID(blockIndexStart)
		if err != nil {
			return err
		}
		if blockID == 0 {
			blockID, err = n.fs.AllocBlock()
			if err != nil {
				return err
			}
			if err := n.setBlockID(blockIndexStart, blockID); err != nil {
				return err
			}
		}
		for blockIndexStart < blockIndexEnd {
			blockID, err = n.fs.AllocBlock(blockID)
			if err != nil {
				return err
			}
			blockIndexStart++
			if err := n.setBlockID(blockIndexStart, blockID); err != nil {
				return err
			}
		}
	}
	return n.save()
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
