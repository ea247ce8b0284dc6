package ext2fs

import "bytes"

// smallSymlinkLimit is the inline-storage threshold: targets shorter than
// this live in the 60 bytes of block_pointer_direct instead of a data
// block.
const smallSymlinkLimit = 60

// inlineCapacity is the byte capacity of block_pointer_direct reinterpreted
// as inline character storage: 15 uint32 slots (all 12 direct pointers plus
// the 3 indirect pointer slots) times 4 bytes.
const inlineCapacity = 60

// Symlink is the typed view of an Inode known to be a symbolic link.
// Construct it with ToSymbolicLink.
type Symlink struct{ *Inode }

// ToSymbolicLink returns a Symlink view of n, or ok=false if n is not a
// symlink.
func ToSymbolicLink(n *Inode) (*Symlink, bool) {
	if !n.IsSymlink() {
		return nil, false
	}
	return &Symlink{n}, true
}

// inlineBytes reinterprets the inode's 15 direct/indirect block-pointer
// uint32 slots as a 60-byte inline character buffer, the overlay the
// reference implementation performs via reinterpret_cast<char*>.
func (n *Inode) inlineBytes() []byte {
	buf := make([]byte, inlineCapacity)
	for i, v := range n.data.BlockDirect {
		putLE32(buf[i*4:], v)
	}
	putLE32(buf[48:], n.data.BlockIndirect[0])
	putLE32(buf[52:], n.data.BlockIndirect[1])
	putLE32(buf[56:], n.data.BlockIndirect[2])
	return buf
}

func (n *Inode) setInlineBytes(buf []byte) {
	padded := make([]byte, inlineCapacity)
	copy(padded, buf)
	for i := range n.data.BlockDirect {
		n.data.BlockDirect[i] = le32(padded[i*4:])
	}
	n.data.BlockIndirect[0] = le32(padded[48:])
	n.data.BlockIndirect[1] = le32(padded[52:])
	n.data.BlockIndirect[2] = le32(padded[56:])
}

// GetTarget returns the symlink's target path.
func (s *Symlink) GetTarget() (string, error) {
	if s.Size() < smallSymlinkLimit {
		buf := s.inlineBytes()
		return string(buf[:s.Size()]), nil
	}
	var out bytes.Buffer
	f := &File{s.Inode}
	if err := f.Dump(&out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// SetTarget stores target as the symlink's target, taking the inline fast
// path for targets shorter than smallSymlinkLimit bytes and falling back to
// the inode's ordinary data stream otherwise.
//
// Transitioning from a long target to a short one does not free the old
// target's data blocks. That is a deliberate carry-over of the reference
// implementation's behaviour, not an oversight introduced here.
func (s *Symlink) SetTarget(target string) error {
	if len(target) < smallSymlinkLimit {
		s.setInlineBytes([]byte(target))
		s.data.Size = uint32(len(target))
		return s.save()
	}
	if s.Size() < smallSymlinkLimit {
		s.setInlineBytes(nil)
		s.data.Size = 0
		if err := s.save(); err != nil {
			return err
		}
		return s.Write(0, []byte(target))
	}

	if err := s.Write(0, []byte(target)); err != nil {
		return err
	}
	if uint64(len(target)) < s.Size() {
		if err := s.SetSize(uint64(len(target))); err != nil {
			return err
		}
	}
	return s.save()
}
