package zim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEntrySpec describes one directory entry for buildTestArchive, in the
// exact URL-sort order the caller wants it to occupy.
type testEntrySpec struct {
	namespace   byte
	url         string
	title       string
	isRedirect  bool
	redirectIdx uint32
	blob        string // content; ignored when isRedirect
}

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

// buildTestArchive assembles a minimal but structurally faithful ZIM image
// in memory: header, a one-entry mimetype list, the directory entries
// (already in URL order), url/title/cluster pointer tables, and a single
// raw (uncompressed) cluster holding every non-redirect entry's blob, in
// the order entries were given.
func buildTestArchive(t *testing.T, entries []testEntrySpec, mainPage uint32) *Archive {
	t.Helper()

	var body bytes.Buffer
	body.Write(make([]byte, headerSize)) // placeholder, patched below

	mimeListPos := int64(body.Len())
	putCString(&body, "text/html")
	putCString(&body, "") // sentinel

	entryOffsets := make([]int64, len(entries))
	var blobs []string
	for i, e := range entries {
		entryOffsets[i] = int64(body.Len())
		if e.isRedirect {
			putU16(&body, RedirectMimeType)
		} else {
			putU16(&body, 0) // "text/html"
		}
		body.WriteByte(0) // paramLen
		body.WriteByte(e.namespace)
		putU32(&body, 0) // revision
		if e.isRedirect {
			putU32(&body, e.redirectIdx)
		} else {
			putU32(&body, 0) // clusterNum
			putU32(&body, uint32(len(blobs)))
			blobs = append(blobs, e.blob)
		}
		putCString(&body, e.url)
		putCString(&body, e.title)
	}

	urlPtrPos := int64(body.Len())
	for _, off := range entryOffsets {
		putU64(&body, uint64(off))
	}

	titlePtrPos := int64(body.Len())
	for i := range entries {
		putU32(&body, uint32(i))
	}

	clusterPtrPos := int64(body.Len())
	// one cluster; its pointer table has exactly one entry
	clusterPtrTableOffset := int64(body.Len())
	putU64(&body, 0) // placeholder, patched below
	_ = clusterPtrTableOffset

	clusterOffset := int64(body.Len())

	// rewrite the cluster pointer now that we know the real offset
	clusterBytes := body.Bytes()
	binary.LittleEndian.PutUint64(clusterBytes[clusterPtrTableOffset:], uint64(clusterOffset))

	body.WriteByte(compressionNone)
	offsetCount := uint32(len(blobs) + 1)
	tableSize := 4 * offsetCount
	offsets := make([]uint32, offsetCount)
	offsets[0] = tableSize
	cursor := tableSize
	for i, b := range blobs {
		cursor += uint32(len(b))
		offsets[i+1] = cursor
	}
	for _, o := range offsets {
		putU32(&body, o)
	}
	for _, b := range blobs {
		body.WriteString(b)
	}

	checksumPos := int64(body.Len())
	body.Write(make([]byte, 16))

	full := body.Bytes()
	var hdr bytes.Buffer
	putU32(&hdr, MagicNumber)
	putU32(&hdr, 5) // version
	putU64(&hdr, 0) // uuid low
	putU64(&hdr, 0) // uuid high
	putU32(&hdr, uint32(len(entries)))
	putU32(&hdr, 1) // clusterCount
	putU64(&hdr, uint64(urlPtrPos))
	putU64(&hdr, uint64(titlePtrPos))
	putU64(&hdr, uint64(clusterPtrPos))
	putU64(&hdr, uint64(mimeListPos))
	putU32(&hdr, mainPage)
	putU32(&hdr, mainPage)
	putU64(&hdr, uint64(checksumPos))
	copy(full[:headerSize], hdr.Bytes())

	a, err := Open(bytes.NewReader(full))
	require.NoError(t, err)
	return a
}

func sampleEntries() []testEntrySpec {
	return []testEntrySpec{
		{namespace: 'A', url: "Apple", title: "Apple", blob: "Apple Body"},
		{namespace: 'A', url: "Banana", title: "", blob: "Banana Body"},
		{namespace: 'A', url: "Redirect", title: "Redirect", isRedirect: true, redirectIdx: 0},
		{namespace: 'M', url: "Language", title: "", blob: "eng"},
		{namespace: 'M', url: "Title", title: "", blob: "Test Archive"},
	}
}

func TestOpen_HeaderAndMimetypes(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	require.EqualValues(t, 5, a.Len())
	e, err := a.GetEntryByIndex(0)
	require.NoError(t, err)
	mt, ok := a.MimeType(e)
	require.True(t, ok)
	require.Equal(t, "text/html", mt)
}

func TestGetEntryByIndex_Ordering(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	want := []struct {
		ns  byte
		url string
	}{
		{'A', "Apple"}, {'A', "Banana"}, {'A', "Redirect"}, {'M', "Language"}, {'M', "Title"},
	}
	for i, w := range want {
		e, err := a.GetEntryByIndex(uint32(i))
		require.NoError(t, err)
		require.Equal(t, w.ns, e.Namespace)
		require.Equal(t, w.url, e.URL)
	}
}

func TestGetEntryByIndex_OutOfRange(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	_, err := a.GetEntryByIndex(a.Len())
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestGetEntryByURL_MatchesIndexLookup(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	for i := uint32(0); i < a.Len(); i++ {
		want, err := a.GetEntryByIndex(i)
		require.NoError(t, err)

		got, ok, err := a.GetEntryByURL(want.Namespace, want.URL)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want.Index, got.Index)

		viaLinear, ok, err := a.linearFindByURL(want.Namespace, want.URL)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want.Index, viaLinear.Index)
	}
}

func TestGetEntryByURL_Miss(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	_, ok, err := a.GetEntryByURL('A', "NoSuchPage")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = a.linearFindByURL('A', "NoSuchPage")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetArticleByIndex_FollowsRedirect(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	e, err := a.GetArticleByIndex(2, true) // "Redirect" -> index 0 ("Apple")
	require.NoError(t, err)
	require.False(t, e.IsRedirect)
	require.Equal(t, "Apple", e.URL)
}

func TestGetArticleByIndex_NotFollowingReturnsRedirectEntry(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	e, err := a.GetArticleByIndex(2, false) // "Redirect" -> index 0
	require.NoError(t, err)
	require.True(t, e.IsRedirect)
	require.Equal(t, uint32(0), e.RedirectIdx)
}

func TestGetArticleByIndex_CycleDetected(t *testing.T) {
	entries := []testEntrySpec{
		{namespace: 'A', url: "One", isRedirect: true, redirectIdx: 1},
		{namespace: 'A', url: "Two", isRedirect: true, redirectIdx: 0},
	}
	a := buildTestArchive(t, entries, noMainPage)

	_, err := a.GetArticleByIndex(0, true)
	require.True(t, errors.Is(err, ErrRedirectCycle))
}

func TestDisplayTitle_FallsBackToURL(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	e, err := a.GetEntryByIndex(1) // "Banana", empty title
	require.NoError(t, err)
	require.Equal(t, "Banana", e.DisplayTitle())
}

func TestReadBlob_ReturnsContent(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	b, err := a.ReadBlob(0, 0)
	require.NoError(t, err)
	require.Equal(t, "Apple Body", string(b))

	b, err = a.ReadBlob(0, 1)
	require.NoError(t, err)
	require.Equal(t, "Banana Body", string(b))
}

func TestReadBlob_OutOfRange(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	_, err := a.ReadBlob(0, 99)
	require.ErrorIs(t, err, ErrBlobOutOfRange)

	_, err = a.ReadBlob(99, 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestReadBlob_CachesClusterAcrossBlobs(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	_, err := a.ReadBlob(0, 0)
	require.NoError(t, err)
	_, err = a.ReadBlob(0, 1)
	require.NoError(t, err)
	_, err = a.ReadBlob(0, 2)
	require.NoError(t, err)

	require.Equal(t, 1, a.clusterCache.lru.Len())
}

func TestIterArticles_OnlyArticleNamespace(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	var urls []string
	for e, err := range a.IterArticles() {
		require.NoError(t, err)
		urls = append(urls, e.URL)
	}
	require.Equal(t, []string{"Apple", "Banana", "Redirect"}, urls)
}

func TestMetadata_CollectsTailEntries(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	meta, err := a.Metadata()
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"language": "eng",
		"title":    "Test Archive",
	}, meta)
}

func TestGetMainPage_Present(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), 0)

	e, ok, err := a.GetMainPage()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Apple", e.URL)
}

func TestGetMainPage_Absent(t *testing.T) {
	a := buildTestArchive(t, sampleEntries(), noMainPage)

	_, ok, err := a.GetMainPage()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClusterData_OffsetTableArithmetic(t *testing.T) {
	blobs := []string{"foo", "barbaz", ""}
	offsetCount := uint32(len(blobs) + 1)
	tableSize := 4 * offsetCount

	var body bytes.Buffer
	offsets := make([]uint32, offsetCount)
	offsets[0] = tableSize
	cursor := tableSize
	for i, b := range blobs {
		cursor += uint32(len(b))
		offsets[i+1] = cursor
	}
	for _, o := range offsets {
		putU32(&body, o)
	}
	for _, b := range blobs {
		body.WriteString(b)
	}

	data := &clusterData{body: memBody{data: body.Bytes()}, offsets: offsets}
	require.Equal(t, len(blobs), data.blobCount())

	for i, want := range blobs {
		got, err := data.readBlob(uint32(i))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}

	_, err := data.readBlob(uint32(len(blobs)))
	require.ErrorIs(t, err, ErrBlobOutOfRange)
}

func TestISO639_1(t *testing.T) {
	v, ok := ISO639_1("eng")
	require.True(t, ok)
	require.Equal(t, "en", v)

	_, ok = ISO639_1("xxx")
	require.False(t, ok)
}
