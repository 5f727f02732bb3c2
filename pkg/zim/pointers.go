package zim

// urlOffset returns the byte offset of the directory entry at directory
// index i. Reads are positional and uncached by default, unless Preload
// has populated the full array, in which case it's served from memory
// instead.
func (a *Archive) urlOffset(i uint32) (int64, error) {
	if a.preloadedURLPtrs != nil {
		return int64(a.preloadedURLPtrs[i]), nil
	}
	v, err := readU64(a.source, int64(a.header.URLPtrPos)+8*int64(i))
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// titleOffset returns the index into the URL-pointer table for the i-th
// entry in title order. Exposed for completeness, but not consulted by the
// search path, which goes through pkg/titleindex instead.
func (a *Archive) titleOffset(i uint32) (uint32, error) {
	return readU32(a.source, int64(a.header.TitlePtrPos)+4*int64(i))
}

// clusterOffset returns the byte offset of cluster i.
func (a *Archive) clusterOffset(i uint32) (int64, error) {
	v, err := readU64(a.source, int64(a.header.ClusterPtrPos)+8*int64(i))
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// TitlePointer exposes the title-pointer table's i-th entry: the index,
// into the URL-pointer table, of the entry that is the i-th in title
// order.
func (a *Archive) TitlePointer(i uint32) (uint32, error) {
	if i >= a.header.ArticleCount {
		return 0, ErrIndexOutOfRange
	}
	return a.titleOffset(i)
}

// Preload reads the full URL-pointer array into memory up front, for
// callers that want to avoid per-lookup positional reads, e.g. a bulk
// listing or reindex. It does not change the façade's default
// no-caching contract; it is purely an optional accelerator consulted by
// urlOffset once populated. Preload stores the array without
// synchronization, so it is not safe to call concurrently with other
// Archive methods.
func (a *Archive) Preload() error {
	offsets := make([]uint64, a.header.ArticleCount)
	base := int64(a.header.URLPtrPos)
	for i := range offsets {
		v, err := readU64(a.source, base+8*int64(i))
		if err != nil {
			return err
		}
		offsets[i] = v
	}
	a.preloadedURLPtrs = offsets
	a.logger.Printf("zim: preloaded %d url pointers", len(offsets))
	return nil
}
