package ext2fs

import "strings"

// Path is a tokenised POSIX path: the non-empty segments between slashes,
// plus whether the original string started with "/".
type Path struct {
	Segments []string
	Absolute bool
}

// ParsePath splits s on "/", dropping empty segments, so "/" and "///" both
// parse to an empty segment list.
func ParsePath(s string) Path {
	absolute := strings.HasPrefix(s, "/")
	var segments []string
	for _, part := range strings.Split(s, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return Path{Segments: segments, Absolute: absolute}
}

// maxSymlinkDepth bounds recursive symlink resolution so a cyclic chain
// fails with ErrTooManySymlinks instead of looping forever.
const maxSymlinkDepth = 40

// FindInode resolves path starting from start (used when path is relative)
// or the filesystem root (used when path is absolute), descending through
// directory entries and optionally following symlinks.
//
// "." and ".." resolve naturally because ReadEntries surfaces the real "."
// and ".." directory entries every directory carries; no special-casing is
// needed in the resolver itself.
func (fs *Filesystem) FindInode(start *Inode, path string, followSymlinks bool) (uint32, error) {
	return fs.findInode(start, ParsePath(path), followSymlinks, 0)
}

func (fs *Filesystem) findInode(start *Inode, p Path, followSymlinks bool, depth int) (uint32, error) {
	if depth > maxSymlinkDepth {
		return 0, ErrTooManySymlinks
	}
	cur := start
	if p.Absolute {
		root, err := fs.GetRoot()
		if err != nil {
			return 0, err
		}
		cur = root
	}
	if len(p.Segments) == 0 {
		return cur.ID(), nil
	}

	for i, seg := range p.Segments {
		dir, ok := ToDirectory(cur)
		if !ok {
			return 0, nil
		}
		entry, found, err := dir.Lookup(seg)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, nil
		}
		last := i == len(p.Segments)-1

		next, err := fs.GetInode(entry.Inode)
		if err != nil {
			return 0, err
		}

		if next.IsSymlink() && (followSymlinks || !last) {
			sym, _ := ToSymbolicLink(next)
			target, err := sym.GetTarget()
			if err != nil {
				return 0, err
			}
			remainder := target
			if !last {
				if !strings.HasSuffix(remainder, "/") {
					remainder += "/"
				}
				remainder += strings.Join(p.Segments[i+1:], "/")
			}
			return fs.findInode(cur, ParsePath(remainder), followSymlinks, depth+1)
		}
		cur = next
	}
	return cur.ID(), nil
}
