package ext2fs

// allocator implements the group-local-first scan shared by the block and
// inode allocators: it is parameterised by one bitmap per block group plus
// the number of elements each bitmap covers. It has no notion of the +1/-1
// translation between a bit index and a block/inode id, nor of the
// superblock/group-descriptor free counters that must be updated alongside
// an allocation; that bookkeeping is the Filesystem's job. This type only
// ever answers "which bit" and flips it.
type allocator struct {
	bitmaps          []*Bitmap
	elementsPerGroup uint32
	notFree          error
}

// alloc finds a clear bit starting the scan at related (an element index,
// not a bit-within-group index) and sets it. It returns the absolute
// element index (group*elementsPerGroup + idx) and the group it was found
// in.
func (a *allocator) alloc(related uint32) (elem uint32, group uint32, err error) {
	numGroups := uint32(len(a.bitmaps))
	if numGroups == 0 {
		return 0, 0, a.notFree
	}
	startGroup := related / a.elementsPerGroup
	startIdx := uint64(related % a.elementsPerGroup)

	for g := uint32(0); g < numGroups; g++ {
		group := (startGroup + g) % numGroups
		start := uint64(0)
		if g == 0 {
			start = startIdx
		}
		idx := a.bitmaps[group].Find(false, start)
		if idx == notFound {
			continue
		}
		a.bitmaps[group].Set(idx, true)
		if err := a.bitmaps[group].Save(); err != nil {
			return 0, 0, err
		}
		return group*a.elementsPerGroup + uint32(idx), group, nil
	}
	return 0, 0, a.notFree
}

// free clears the bit for elem (group*elementsPerGroup + idx).
func (a *allocator) free(elem uint32) (group uint32, err error) {
	group = elem / a.elementsPerGroup
	idx := uint64(elem % a.elementsPerGroup)
	a.bitmaps[group].Set(idx, false)
	if err := a.bitmaps[group].Save(); err != nil {
		return group, err
	}
	return group, nil
}
