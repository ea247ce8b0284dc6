package ext2fs

import "io"

// File is the typed view of an Inode known to be a regular file: a
// thin stream over Inode.Read/Write. Construct it with ToFile.
type File struct{ *Inode }

// ToFile returns a File view of n, or ok=false if n is not a regular file.
func ToFile(n *Inode) (*File, bool) {
	if !n.IsRegularFile() {
		return nil, false
	}
	return &File{n}, true
}

// ReadAt implements io.ReaderAt, bounding reads to the file's size the way
// a real file descriptor would (the underlying Inode.Read has no such
// bound).
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	size := int64(f.Size())
	if off >= size {
		return 0, io.EOF
	}
	n := len(p)
	if off+int64(n) > size {
		n = int(size - off)
	}
	if err := f.Inode.Read(uint64(off), p[:n]); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if err := f.Inode.Write(uint64(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// dumpChunkSize is the buffer size used by Dump, matching the reference
// implementation's read_inode_content helper.
const dumpChunkSize = 255

// Dump streams the whole file to w, dumpChunkSize bytes at a time, the same
// read pattern the reference implementation's read_inode_content uses for
// both File and Symlink content.
func (f *File) Dump(w io.Writer) error {
	var buf [dumpChunkSize]byte
	var offset uint64
	size := f.Size()
	for offset < size {
		length := uint64(len(buf))
		if size-offset < length {
			length = size - offset
		}
		if err := f.Inode.Read(offset, buf[:length]); err != nil {
			return err
		}
		if _, err := w.Write(buf[:length]); err != nil {
			return err
		}
		offset += length
	}
	return nil
}
