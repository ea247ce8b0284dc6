package main

import (
	"fmt"
	"os"

	"github.com/zschoche/ext2fs"
)

const usage = `ext2ls - minimal ext2 image inspector

Usage:
  ext2ls ls <image> [<path>]    List files under path (default: /)
  ext2ls cat <image> <path>     Print a regular file's contents
  ext2ls info <image>           Print superblock summary
  ext2ls help                   Show this help message
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ls":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: missing image path")
			os.Exit(1)
		}
		path := "/"
		if len(os.Args) > 3 {
			path = os.Args[3]
		}
		if err := listPath(os.Args[2], path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "cat":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Error: missing image path or target file")
			os.Exit(1)
		}
		if err := catFile(os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "info":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: missing image path")
			os.Exit(1)
		}
		if err := showInfo(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "help":
		fmt.Println(usage)

	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		fmt.Println(usage)
		os.Exit(1)
	}
}

func openImage(path string) (*ext2fs.Filesystem, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	dev := &ext2fs.SectionDevice{R: f, W: f}
	fs, err := ext2fs.Open(dev)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return fs, f, nil
}

func listPath(imagePath, path string) error {
	fs, f, err := openImage(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := fs.GetRoot()
	if err != nil {
		return err
	}
	id, err := fs.FindInode(root, path, true)
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%s: not found", path)
	}
	n, err := fs.GetInode(id)
	if err != nil {
		return err
	}
	return ext2fs.Print(fs, os.Stdout, n)
}

func catFile(imagePath, path string) error {
	fs, f, err := openImage(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := fs.GetRoot()
	if err != nil {
		return err
	}
	id, err := fs.FindInode(root, path, true)
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%s: not found", path)
	}
	n, err := fs.GetInode(id)
	if err != nil {
		return err
	}
	file, ok := ext2fs.ToFile(n)
	if !ok {
		return fmt.Errorf("%s: not a regular file", path)
	}
	return file.Dump(os.Stdout)
}

func showInfo(imagePath string) error {
	fs, f, err := openImage(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	sb := fs.Superblock()
	fmt.Printf("block size:    %d\n", sb.BlockSize())
	fmt.Printf("block count:   %d\n", sb.BlockCount)
	fmt.Printf("inode count:   %d\n", sb.InodeCount)
	fmt.Printf("free blocks:   %d\n", sb.FreeBlockCount)
	fmt.Printf("free inodes:   %d\n", sb.FreeInodeCount)
	fmt.Printf("groups:        %d\n", sb.BlockGroupCount())
	fmt.Printf("large files:   %v\n", sb.LargeFiles())
	fmt.Printf("opt features:  %s\n", sb.FeaturesOpt)
	fmt.Printf("req features:  %s\n", sb.FeaturesReq)
	fmt.Printf("ro features:   %s\n", sb.FeaturesRO)
	return nil
}
