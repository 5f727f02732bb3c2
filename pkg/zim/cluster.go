package zim

import (
	"bytes"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ulikunitz/xz/lzma"
)

// clusterCacheSize is the LRU capacity for decompressed clusters.
const clusterCacheSize = 32

const (
	compressionNone  byte = 1
	compressionLZMA2 byte = 4
)

// clusterBody abstracts over where a cluster's bytes live: fully in memory
// (the LZMA2 case, which must be decompressed once) or still on the
// underlying source (the raw case, read lazily per blob via positional
// reads so an uncompressed multi-megabyte cluster is never copied whole).
type clusterBody interface {
	readRange(start, end uint32) ([]byte, error)
}

type memBody struct{ data []byte }

func (m memBody) readRange(start, end uint32) ([]byte, error) {
	if int(end) > len(m.data) || start > end {
		return nil, fmt.Errorf("%w: blob range [%d,%d) exceeds cluster body of %d bytes", ErrBlobOutOfRange, start, end, len(m.data))
	}
	return m.data[start:end], nil
}

type fileBody struct {
	source io.ReaderAt
	base   int64
}

func (f fileBody) readRange(start, end uint32) ([]byte, error) {
	if start > end {
		return nil, fmt.Errorf("%w: inverted blob range [%d,%d)", ErrBlobOutOfRange, start, end)
	}
	buf := make([]byte, end-start)
	if _, err := f.source.ReadAt(buf, f.base+int64(start)); err != nil {
		return nil, fmt.Errorf("%w: reading blob range: %v", ErrTruncated, err)
	}
	return buf, nil
}

// clusterData is one materialized, decompressed-if-needed cluster: its
// body plus the parsed blob offset table. It is immutable once built.
type clusterData struct {
	body    clusterBody
	offsets []uint32 // len == blobCount+1; offsets[i+1] is the end of blob i
}

func (c *clusterData) blobCount() int {
	return len(c.offsets) - 1
}

func (c *clusterData) readBlob(blobIndex uint32) ([]byte, error) {
	if int(blobIndex) >= c.blobCount() {
		return nil, fmt.Errorf("%w: blob %d (cluster has %d)", ErrBlobOutOfRange, blobIndex, c.blobCount())
	}
	return c.body.readRange(c.offsets[blobIndex], c.offsets[blobIndex+1])
}

// newClusterData reads the compressionType byte at clusterStart, decodes
// the body, and parses the blob offset table.
//
// The first u32 in the body equals 4*(blobCount+1); dividing by 4 yields
// blobCount+1, i.e. the *length* of the offsets array including the
// end-of-last-blob sentinel, not the blob count itself.
func newClusterData(source io.ReaderAt, clusterStart, clusterEnd int64) (*clusterData, error) {
	compressionType, err := readByte(source, clusterStart)
	if err != nil {
		return nil, fmt.Errorf("%w: reading cluster compression byte: %v", ErrTruncated, err)
	}
	bodyStart := clusterStart + 1

	var body clusterBody
	switch compressionType & 0x0F {
	case compressionNone:
		body = fileBody{source: source, base: bodyStart}
	case compressionLZMA2:
		compressed := make([]byte, clusterEnd-bodyStart)
		if _, err := source.ReadAt(compressed, bodyStart); err != nil {
			return nil, fmt.Errorf("%w: reading compressed cluster: %v", ErrTruncated, err)
		}
		lr, err := lzma.NewReader2(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("zim: opening LZMA2 stream: %w", err)
		}
		decompressed, err := io.ReadAll(lr)
		if err != nil {
			return nil, fmt.Errorf("zim: decompressing LZMA2 cluster: %w", err)
		}
		body = memBody{data: decompressed}
	default:
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedCompression, compressionType)
	}

	firstOffset, err := body.readRange(0, 4)
	if err != nil {
		return nil, fmt.Errorf("zim: reading blob offset table: %w", err)
	}
	first := uint32(firstOffset[0]) | uint32(firstOffset[1])<<8 | uint32(firstOffset[2])<<16 | uint32(firstOffset[3])<<24

	offsetCount := first / 4
	if offsetCount == 0 {
		return nil, fmt.Errorf("zim: cluster blob offset table reports zero entries")
	}
	offsets := make([]uint32, offsetCount)
	offsets[0] = first
	for i := uint32(1); i < offsetCount; i++ {
		raw, err := body.readRange(4*i, 4*i+4)
		if err != nil {
			return nil, fmt.Errorf("zim: reading blob offset %d: %w", i, err)
		}
		offsets[i] = uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	}

	return &clusterData{body: body, offsets: offsets}, nil
}

// clusterCache is the mutex-free (hashicorp/golang-lru is internally
// synchronized) bounded LRU of decompressed clusters, keyed by the
// cluster's byte offset.
type clusterCache struct {
	lru *lru.Cache[int64, *clusterData]
}

func newClusterCache(size int) *clusterCache {
	c, err := lru.New[int64, *clusterData](size)
	if err != nil {
		// Only returns an error for size <= 0; clusterCacheSize is a
		// positive constant, so this is unreachable in practice.
		c, _ = lru.New[int64, *clusterData](1)
	}
	return &clusterCache{lru: c}
}

// ReadBlob resolves cluster clusterIndex's blob blobIndex, decompressing
// and caching the cluster on a miss.
func (a *Archive) ReadBlob(clusterIndex, blobIndex uint32) ([]byte, error) {
	if clusterIndex >= a.header.ClusterCount {
		return nil, fmt.Errorf("%w: cluster %d", ErrIndexOutOfRange, clusterIndex)
	}

	start, err := a.clusterOffset(clusterIndex)
	if err != nil {
		return nil, err
	}

	if data, ok := a.clusterCache.lru.Get(start); ok {
		return data.readBlob(blobIndex)
	}

	var end int64
	if clusterIndex+1 < a.header.ClusterCount {
		end, err = a.clusterOffset(clusterIndex + 1)
		if err != nil {
			return nil, err
		}
	} else {
		end = int64(a.header.ChecksumPos)
	}

	a.logger.Printf("zim: cache miss, decompressing cluster %d (%d bytes)", clusterIndex, end-start)

	data, err := newClusterData(a.source, start, end)
	if err != nil {
		return nil, err
	}
	a.clusterCache.lru.Add(start, data)

	return data.readBlob(blobIndex)
}
