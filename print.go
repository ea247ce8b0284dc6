package ext2fs

import "io"

// Print performs a depth-first, recursive listing of the tree rooted at
// start, skipping "." and "..". Each entry emits its full path; a symlink
// entry additionally emits " -> " and its target. Every line ends with
// "\n".
func Print(fs *Filesystem, w io.Writer, start *Inode) error {
	return printVisit(fs, w, start, "")
}

func printVisit(fs *Filesystem, w io.Writer, n *Inode, prefix string) error {
	dir, ok := ToDirectory(n)
	if !ok {
		return nil
	}
	entries, err := dir.ReadEntries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		path := prefix + "/" + e.Name
		child, err := fs.GetInode(e.Inode)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, path); err != nil {
			return err
		}
		if sym, ok := ToSymbolicLink(child); ok {
			target, err := sym.GetTarget()
			if err != nil {
				return err
			}
			if _, err := io.WriteString(w, " -> "+target); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := printVisit(fs, w, child, path); err != nil {
			return err
		}
	}
	return nil
}
