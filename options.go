package ext2fs

import (
	"log"
	"time"
)

// Option configures a Filesystem at construction time.
type Option func(fs *Filesystem) error

// WithLogger overrides the logger that Open uses for the summary line it
// prints after loading an image; allocation does not log. The default is
// log.Default(); pass log.New(io.Discard, "", 0) to silence it entirely.
func WithLogger(l *log.Logger) Option {
	return func(fs *Filesystem) error {
		fs.log = l
		return nil
	}
}

// WithClock overrides the function used to stamp inode and superblock
// timestamps. The default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(fs *Filesystem) error {
		fs.clock = now
		return nil
	}
}

// WithSuperblockOffset overrides the byte offset of the primary superblock.
// Defaults to 1024, the standard ext2 location.
func WithSuperblockOffset(offset uint64) Option {
	return func(fs *Filesystem) error {
		fs.sbOffset = offset
		return nil
	}
}
