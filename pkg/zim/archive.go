package zim

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"
)

// maxRedirectDepth bounds redirect chasing in GetArticleByIndex /
// GetArticleByURL: a chain deeper than this is treated as corruption
// (ErrRedirectCycle) rather than followed forever.
const maxRedirectDepth = 16

// noMainPage is the header sentinel meaning "this archive has no main page".
const noMainPage = 0xFFFFFFFF

// metadataNamespace is the directory namespace holding archive metadata
// (title, language, creator, ...) as its own directory entries.
const metadataNamespace = 'M'

// articleNamespace is the only namespace IterArticles yields.
const articleNamespace = 'A'

// Archive is an open ZIM file: the decoded header, mimetype list, and the
// collaborators (cluster cache, optional preloaded pointer table) needed to
// resolve directory entries and article bodies on demand. All reads beyond
// the initial Open are positional (io.ReaderAt), so an Archive is safe for
// concurrent use by multiple goroutines except where noted.
type Archive struct {
	source    io.ReaderAt
	closer    io.Closer // nil if source does not implement io.Closer
	header    Header
	mimetypes []string
	encoding  Encoding
	logger    *log.Logger

	clusterCache *clusterCache

	// preloadedURLPtrs is populated only after a call to Preload;
	// nil otherwise. See pointers.go.
	preloadedURLPtrs []uint64
}

// discardLogger is the default logger: writes nowhere until a caller opts
// in with WithLogger.
func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Option configures Open.
type Option func(*Archive)

// WithLogger installs a logger for diagnostic messages (cluster cache
// misses, pointer preloading). The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// WithEncoding overrides the decoder used for url/title/mimetype strings.
// The default is UTF8.
func WithEncoding(enc Encoding) Option {
	return func(a *Archive) { a.encoding = enc }
}

// Open decodes the header and mimetype list of the ZIM archive readable
// through r and returns a ready-to-query Archive. r must remain valid for
// the Archive's lifetime; if r also implements io.Closer, Close will close
// it.
func Open(r io.ReaderAt, opts ...Option) (*Archive, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		source:       r,
		header:       header,
		encoding:     UTF8,
		logger:       discardLogger(),
		clusterCache: newClusterCache(clusterCacheSize),
	}
	for _, opt := range opts {
		opt(a)
	}

	mimetypes, err := readMimetypes(r, int64(header.MimeListPos), a.encoding)
	if err != nil {
		return nil, err
	}
	a.mimetypes = mimetypes

	if c, ok := r.(io.Closer); ok {
		a.closer = c
	}

	a.logger.Printf("zim: opened archive: %d entries, %d clusters", header.ArticleCount, header.ClusterCount)

	return a, nil
}

// Close releases the underlying source, if Open's reader was also an
// io.Closer. It is a no-op otherwise.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Len returns the number of directory entries in the archive (all
// namespaces combined).
func (a *Archive) Len() uint32 {
	return a.header.ArticleCount
}

// MimeType resolves a directory entry's raw mimetype index into its string
// form, e.g. "text/html". It returns ("", false) for the redirect sentinel
// or an out-of-range index.
func (a *Archive) MimeType(e Entry) (string, bool) {
	if e.IsRedirect || int(e.MimeType) >= len(a.mimetypes) {
		return "", false
	}
	return a.mimetypes[e.MimeType], true
}

// GetEntryByIndex decodes and returns the directory entry at URL-sorted
// position i.
func (a *Archive) GetEntryByIndex(i uint32) (Entry, error) {
	if i >= a.header.ArticleCount {
		return Entry{}, fmt.Errorf("%w: entry %d", ErrIndexOutOfRange, i)
	}
	offset, err := a.urlOffset(i)
	if err != nil {
		return Entry{}, err
	}
	e, err := readDirectoryEntry(a.source, offset, a.encoding)
	if err != nil {
		return Entry{}, err
	}
	e.Index = i
	return e, nil
}

// followRedirects resolves e according to followRedirect. If e is not a
// redirect, or followRedirect is false, e is returned unchanged: an
// unfollowed redirect entry carries a valid RedirectIdx and no blob
// location, which callers use as the "null body, here's where it points"
// result instead of reading a blob. Otherwise the chain is chased up to
// maxRedirectDepth hops.
func (a *Archive) followRedirects(e Entry, followRedirect bool) (Entry, error) {
	if !e.IsRedirect || !followRedirect {
		return e, nil
	}
	start := e.Index
	for depth := 0; e.IsRedirect; depth++ {
		if depth >= maxRedirectDepth {
			return Entry{}, fmt.Errorf("%w: at entry %d", ErrRedirectCycle, start)
		}
		next, err := a.GetEntryByIndex(e.RedirectIdx)
		if err != nil {
			return Entry{}, err
		}
		e = next
	}
	return e, nil
}

// GetArticleByIndex resolves the entry at index i. If followRedirect is
// true (the common case), redirects are chased until an article entry is
// reached. If false and the entry at i is itself a redirect, the redirect
// entry is returned as-is: callers can read its RedirectIdx field instead
// of fetching a blob.
func (a *Archive) GetArticleByIndex(i uint32, followRedirect bool) (Entry, error) {
	e, err := a.GetEntryByIndex(i)
	if err != nil {
		return Entry{}, err
	}
	return a.followRedirects(e, followRedirect)
}

// GetEntryByURL binary-searches the URL-pointer table for the entry whose
// (namespace, url) key matches exactly, returning (Entry{}, false, nil) on
// a clean miss. Comparison is byte-lexicographic over FullURL, matching the
// archive's own directory ordering.
func (a *Archive) GetEntryByURL(namespace byte, url string) (Entry, bool, error) {
	target := []byte(FullURL(namespace, url))

	low, high := 0, int(a.header.ArticleCount)
	for low < high {
		mid := low + (high-low)/2
		e, err := a.GetEntryByIndex(uint32(mid))
		if err != nil {
			return Entry{}, false, err
		}
		cmp := bytes.Compare([]byte(FullURL(e.Namespace, e.URL)), target)
		switch {
		case cmp == 0:
			return e, true, nil
		case cmp < 0:
			low = mid + 1
		default:
			if mid == 0 {
				return Entry{}, false, nil
			}
			high = mid
		}
	}
	return Entry{}, false, nil
}

// GetArticleByURL looks up (namespace, url) and, if found, resolves it per
// followRedirect (see GetArticleByIndex).
func (a *Archive) GetArticleByURL(namespace byte, url string, followRedirect bool) (Entry, bool, error) {
	e, ok, err := a.GetEntryByURL(namespace, url)
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	e, err = a.followRedirects(e, followRedirect)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// GetMainPage resolves the archive's configured main page entry. ok is
// false if the archive declares no main page.
func (a *Archive) GetMainPage() (e Entry, ok bool, err error) {
	if a.header.MainPage == noMainPage {
		return Entry{}, false, nil
	}
	e, err = a.GetArticleByIndex(a.header.MainPage, true)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// IterArticles lazily yields every directory entry in the article ('A')
// namespace, in URL order. Iteration stops at the first decode error, which
// is surfaced as the sequence's error value.
func (a *Archive) IterArticles() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for i := uint32(0); i < a.header.ArticleCount; i++ {
			e, err := a.GetEntryByIndex(i)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if e.Namespace != articleNamespace {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Metadata collects the archive's 'M'-namespace entries into a key/value
// map (key is the entry's URL lowercased, e.g. "title"; value is its blob
// content). Metadata entries sort to the tail of the directory, so this
// walks backward from the last entry and stops at the first non-'M'
// namespace.
func (a *Archive) Metadata() (map[string]string, error) {
	meta := make(map[string]string)
	for i := int64(a.header.ArticleCount) - 1; i >= 0; i-- {
		e, err := a.GetEntryByIndex(uint32(i))
		if err != nil {
			return nil, err
		}
		if e.Namespace != metadataNamespace {
			break
		}
		if e.IsRedirect {
			continue
		}
		blob, err := a.ReadBlob(e.ClusterNum, e.BlobNum)
		if err != nil {
			return nil, err
		}
		meta[strings.ToLower(e.URL)] = a.encoding.Decode(blob)
	}
	return meta, nil
}

// linearFindByURL is a brute-force, test-only counterpart to GetEntryByURL,
// used to cross-check binary-search correctness against a full scan.
func (a *Archive) linearFindByURL(namespace byte, url string) (Entry, bool, error) {
	target := FullURL(namespace, url)
	for i := uint32(0); i < a.header.ArticleCount; i++ {
		e, err := a.GetEntryByIndex(i)
		if err != nil {
			return Entry{}, false, err
		}
		if FullURL(e.Namespace, e.URL) == target {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}
