package titleindex

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dylanmccall/zimply-core/pkg/zim"
)

// buildMiniArchive assembles just enough of a ZIM image for title-index
// purposes: a header, a one-entry mimetype list, one directory entry per
// title (all in the 'A' namespace, already URL-sorted), and a url-pointer
// table. No clusters are written since the title index never reads blobs.
func buildMiniArchive(t *testing.T, titles []string) *zim.Archive {
	t.Helper()

	const headerSize = 80

	putU16 := func(buf *bytes.Buffer, v uint16) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf.Write(b[:])
	}
	putU32 := func(buf *bytes.Buffer, v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	putU64 := func(buf *bytes.Buffer, v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	putCString := func(buf *bytes.Buffer, s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}

	var body bytes.Buffer
	body.Write(make([]byte, headerSize))

	mimeListPos := int64(body.Len())
	putCString(&body, "text/html")
	putCString(&body, "")

	sorted := append([]string(nil), titles...)
	sort.Strings(sorted)

	entryOffsets := make([]int64, len(sorted))
	for i, title := range sorted {
		entryOffsets[i] = int64(body.Len())
		putU16(&body, 0) // mimetype: text/html
		body.WriteByte(0)
		body.WriteByte('A')
		putU32(&body, 0) // revision
		putU32(&body, 0) // clusterNum (unused by title index)
		putU32(&body, 0) // blobNum (unused by title index)
		putCString(&body, title)
		putCString(&body, title)
	}

	urlPtrPos := int64(body.Len())
	for _, off := range entryOffsets {
		putU64(&body, uint64(off))
	}
	titlePtrPos := int64(body.Len())
	clusterPtrPos := int64(body.Len())
	checksumPos := int64(body.Len())

	full := body.Bytes()
	var hdr bytes.Buffer
	putU32(&hdr, zim.MagicNumber)
	putU32(&hdr, 5)
	putU64(&hdr, 0)
	putU64(&hdr, 0)
	putU32(&hdr, uint32(len(sorted)))
	putU32(&hdr, 0) // clusterCount
	putU64(&hdr, uint64(urlPtrPos))
	putU64(&hdr, uint64(titlePtrPos))
	putU64(&hdr, uint64(clusterPtrPos))
	putU64(&hdr, uint64(mimeListPos))
	putU32(&hdr, 0xFFFFFFFF) // no main page
	putU32(&hdr, 0xFFFFFFFF)
	putU64(&hdr, uint64(checksumPos))
	copy(full[:headerSize], hdr.Bytes())

	a, err := zim.Open(bytes.NewReader(full))
	require.NoError(t, err)
	return a
}

func TestBuildAndQuery_PrefixMatch(t *testing.T) {
	a := buildMiniArchive(t, []string{
		"Railway Station",
		"Rainfall Patterns",
		"Submarine",
	})

	path := filepath.Join(t.TempDir(), "titles.bluge")
	require.NoError(t, Build(a, path))

	idx, err := Load(path)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Query([]string{"rail"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestQuery_EmptyTermsReturnsNil(t *testing.T) {
	a := buildMiniArchive(t, []string{"Solo Entry"})
	path := filepath.Join(t.TempDir(), "titles.bluge")
	require.NoError(t, Build(a, path))

	idx, err := Load(path)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Query([]string{"  ", ""}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestBuild_ReusesExistingIndex(t *testing.T) {
	a := buildMiniArchive(t, []string{"Apple", "Banana"})
	path := filepath.Join(t.TempDir(), "titles.bluge")
	require.NoError(t, Build(a, path))

	empty := buildMiniArchive(t, nil)
	require.NoError(t, Build(empty, path))

	idx, err := Load(path)
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestQuery_NoMatchReturnsEmpty(t *testing.T) {
	a := buildMiniArchive(t, []string{"Apple", "Banana"})
	path := filepath.Join(t.TempDir(), "titles.bluge")
	require.NoError(t, Build(a, path))

	idx, err := Load(path)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Query([]string{"zzzznotfound"}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}
