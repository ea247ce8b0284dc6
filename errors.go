package ext2fs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrNoFreeBlock is returned by AllocBlock when every block bitmap bit
	// in every block group is set.
	ErrNoFreeBlock = errors.New("ext2fs: no free block")

	// ErrNoFreeInode is returned by AllocInode when every inode bitmap bit
	// in every block group is set.
	ErrNoFreeInode = errors.New("ext2fs: no free inode")

	// ErrFileTooLarge is returned by SetSize when a file without the
	// large_files feature would grow past the 32-bit size limit.
	ErrFileTooLarge = errors.New("ext2fs: file is full")

	// ErrOutOfRange is returned by Write when offset is strictly greater
	// than the current size of the inode.
	ErrOutOfRange = errors.New("ext2fs: write offset out of range")

	// ErrCorruptImage is returned by Open when the superblock magic does
	// not match, sizes are inconsistent, or a bitmap cannot be read. Format
	// also returns it for an unsupported block size or a block count too
	// small to hold the metadata.
	ErrCorruptImage = errors.New("ext2fs: corrupt image")

	// ErrInvalidName is returned when a directory entry name is empty,
	// contains a NUL byte, or contains a path separator.
	ErrInvalidName = errors.New("ext2fs: invalid name")

	// ErrTooManySymlinks is returned when symlink resolution exceeds the
	// maximum depth, preventing infinite loops on cyclic symlinks.
	ErrTooManySymlinks = errors.New("ext2fs: too many levels of symbolic links")
)
