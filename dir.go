package ext2fs

import "strings"

// DirEntry is one parsed directory entry: a name, the inode id it points
// at, and the file-type hint byte.
type DirEntry struct {
	Inode uint32
	Type  uint8
	Name  string
}

// Directory is the typed view of an Inode known to be a directory.
// It carries no state beyond the Inode; construct it with ToDirectory.
type Directory struct{ *Inode }

// ToDirectory returns a Directory view of n, or ok=false if n is not a
// directory.
func ToDirectory(n *Inode) (*Directory, bool) {
	if !n.IsDirectory() {
		return nil, false
	}
	return &Directory{n}, true
}

// Directory unconditionally wraps n as a Directory view; used internally
// where the kind is already known (e.g. right after CreateDirectory).
func (n *Inode) Directory() *Directory { return &Directory{n} }

// ReadEntries walks the directory's data stream from offset 0, stopping at
// a zero inode id or end of file.
func (d *Directory) ReadEntries() ([]DirEntry, error) {
	var result []DirEntry
	var offset uint64
	size := d.Size()
	for offset < size {
		var head [dirEntryHeadSize]byte
		if err := d.Read(offset, head[:]); err != nil {
			return nil, err
		}
		inode := le32(head[0:4])
		if inode == 0 {
			break
		}
		recLen := uint16(head[4]) | uint16(head[5])<<8
		nameLen := head[6]
		typ := head[7]

		name := make([]byte, nameLen)
		if err := d.Read(offset+dirEntryHeadSize, name); err != nil {
			return nil, err
		}
		result = append(result, DirEntry{Inode: inode, Type: typ, Name: string(name)})
		offset += uint64(recLen)
	}
	return result, nil
}

// WriteEntries serialises entries from offset 0. Every entry but the last
// uses its tight length (8 + name length); the last is inflated to fill the
// rest of the directory's current size so future Append calls don't have
// to grow the file for small additions.
func (d *Directory) WriteEntries(entries []DirEntry) error {
	return d.writeEntries(entries)
}

func (d *Directory) writeEntries(entries []DirEntry) error {
	size := d.Size()
	var offset uint64
	for i, e := range entries {
		nameLen := uint8(len(e.Name))
		var recLen uint16
		if i+1 == len(entries) {
			tight := uint64(dirEntryHeadSize) + uint64(nameLen)
			remaining := size - offset
			if remaining > tight {
				recLen = uint16(remaining)
			} else {
				recLen = uint16(tight)
			}
		} else {
			recLen = uint16(dirEntryHeadSize) + uint16(nameLen)
		}

		var head [dirEntryHeadSize]byte
		putLE32(head[0:4], e.Inode)
		head[4] = byte(recLen)
		head[5] = byte(recLen >> 8)
		head[6] = nameLen
		head[7] = e.Type
		if err := d.Write(offset, head[:]); err != nil {
			return err
		}
		if err := d.Write(offset+dirEntryHeadSize, []byte(e.Name)); err != nil {
			return err
		}
		offset += uint64(recLen)
	}
	return nil
}

// Append adds a new entry to the directory, matching the file-type byte to
// the target inode's kind, and bumps the target's LinksCount. Attaching the
// first entry is what makes an inode created by CreateFile or
// CreateSymbolicLink live.
func (d *Directory) Append(name string, target *Inode) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return ErrInvalidName
	}
	entries, err := d.ReadEntries()
	if err != nil {
		return err
	}
	entries = append(entries, DirEntry{Inode: target.ID(), Type: dirEntryTypeFor(target.data.Type), Name: name})
	if err := d.writeEntries(entries); err != nil {
		return err
	}
	target.data.LinksCount++
	return target.save()
}

// Lookup returns the entry named name, if any.
func (d *Directory) Lookup(name string) (DirEntry, bool, error) {
	entries, err := d.ReadEntries()
	if err != nil {
		return DirEntry{}, false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, true, nil
		}
	}
	return DirEntry{}, false, nil
}

// Remove deletes the entry named name. It returns false, with no error,
// for invalid-operation cases reported as a boolean result rather than an
// error: removing "." or "..", or removing a non-empty subdirectory.
// Removing a name that doesn't exist is a no-op that returns true.
func (d *Directory) Remove(name string) (bool, error) {
	entries, err := d.ReadEntries()
	if err != nil {
		return false, err
	}
	return d.remove(name, entries)
}

func (d *Directory) remove(name string, entries []DirEntry) (bool, error) {
	if name == "." || name == ".." {
		return false, nil
	}

	idx := -1
	for i, e := range entries {
		if e.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return true, nil
	}
	target := entries[idx]

	victim, err := d.fs.GetInode(target.Inode)
	if err != nil {
		return false, err
	}
	if sub, ok := ToDirectory(victim); ok {
		subEntries, err := sub.ReadEntries()
		if err != nil {
			return false, err
		}
		if len(subEntries) > 2 {
			return false, nil
		}
	}

	victim.data.LinksCount--
	if victim.data.LinksCount == 0 {
		victim.data.Dtime = d.fs.now()
	}
	if err := victim.save(); err != nil {
		return false, err
	}
	if victim.data.LinksCount == 0 {
		if !(victim.IsSymlink() && victim.Size() < 60) {
			i := uint64(0)
			blockID, err := victim.getBlockID(i)
			if err != nil {
				return false, err
			}
			for blockID != 0 {
				if err := d.fs.FreeBlock(blockID); err != nil {
					return false, err
				}
				i++
				blockID, err = victim.getBlockID(i)
				if err != nil {
					return false, err
				}
			}
		}
		if err := d.fs.FreeInode(target.Inode); err != nil {
			return false, err
		}
	}

	entries = append(entries[:idx], entries[idx+1:]...)
	if err := d.writeEntries(entries); err != nil {
		return false, err
	}
	return true, nil
}
