// Package titleindex builds and queries a persistent, full-text index over
// a ZIM archive's article titles, used to accelerate title search ahead of
// pkg/bm25 re-ranking.
package titleindex

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/analysis"
	"github.com/blugelabs/bluge/analysis/tokenizer"

	"github.com/dylanmccall/zimply-core/pkg/zim"
)

const (
	titleField    = "title"
	idxField      = "idx"
	flushEvery    = 5000
	defaultLimit  = 100
)

// stemFilter lowercases and Porter-stems each token, so that "railway" and
// "rail" share the same indexed term family.
type stemFilter struct{}

func (stemFilter) Filter(tokens analysis.TokenStream) analysis.TokenStream {
	for _, t := range tokens {
		t.Term = []byte(porterstemmer.StemString(strings.ToLower(string(t.Term))))
	}
	return tokens
}

func titleAnalyzer() *analysis.Analyzer {
	return &analysis.Analyzer{
		Tokenizer:    tokenizer.NewUnicodeTokenizer(),
		TokenFilters: []analysis.TokenFilter{stemFilter{}},
	}
}

// DefaultIndexPath returns the conventional index location for a ZIM file:
// the same path with its extension replaced by .bluge.
func DefaultIndexPath(zimPath string) string {
	ext := filepath.Ext(zimPath)
	return strings.TrimSuffix(zimPath, ext) + ".bluge"
}

// discardLogger is the default logger: writes nowhere until a caller opts
// in with WithLogger.
func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Option configures Build and Load.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger installs a logger for diagnostic messages (index build
// progress, document counting). The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func resolveOptions(opts []Option) *options {
	o := &options{logger: discardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Index is a read handle onto a built title index.
type Index struct {
	path   string
	reader *bluge.Reader
	logger *log.Logger

	countMu    sync.RWMutex
	countCache uint64
	countKnown bool
}

// Build creates a fresh index at path by iterating every article-namespace
// entry of a and inserting a (directoryIndex, title) document for each.
// If path already exists, Build returns immediately without rebuilding it; callers
// that want to force a rebuild should remove path first.
func Build(a *zim.Archive, path string, opts ...Option) error {
	o := resolveOptions(opts)

	if _, err := os.Stat(path); err == nil {
		o.logger.Printf("titleindex: index already exists at %s, reusing it", path)
		return nil
	}

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return fmt.Errorf("titleindex: opening writer: %w", err)
	}
	defer writer.Close()

	analyzer := titleAnalyzer()
	batch := bluge.NewBatch()
	count := 0

	o.logger.Printf("titleindex: building index at %s", path)

	for e, iterErr := range a.IterArticles() {
		if iterErr != nil {
			return fmt.Errorf("titleindex: iterating articles: %w", iterErr)
		}

		doc := bluge.NewDocument(strconv.FormatUint(uint64(e.Index), 10))
		doc.AddField(bluge.NewTextField(titleField, e.DisplayTitle()).WithAnalyzer(analyzer))
		doc.AddField(bluge.NewNumericField(idxField, float64(e.Index)).StoreValue())
		batch.Insert(doc)
		count++

		if count%flushEvery == 0 {
			if err := writer.Batch(batch); err != nil {
				return fmt.Errorf("titleindex: writing batch: %w", err)
			}
			batch = bluge.NewBatch()
			o.logger.Printf("titleindex: indexed %d titles so far", count)
		}
	}
	if err := writer.Batch(batch); err != nil {
		return fmt.Errorf("titleindex: writing final batch: %w", err)
	}
	o.logger.Printf("titleindex: indexed %d titles into %s", count, path)
	return nil
}

// Load opens an index previously created by Build.
func Load(path string, opts ...Option) (*Index, error) {
	o := resolveOptions(opts)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("titleindex: %s: %w", path, err)
	}
	reader, err := bluge.OpenReader(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("titleindex: opening %s: %w", path, err)
	}
	return &Index{path: path, reader: reader, logger: o.logger}, nil
}

// Close releases the index's read handle.
func (idx *Index) Close() error {
	if idx.reader == nil {
		return nil
	}
	return idx.reader.Close()
}

// Query performs a prefix-wildcard match: each keyword in terms is
// lowercased, Porter-stemmed, and suffixed with "*"; the resulting
// wildcard clauses are ORed together. It returns the unordered set of
// matching directory indices, up to limit results (a limit <= 0 uses a
// built-in default). Ranking the candidates, if desired, is left to
// pkg/bm25.
func (idx *Index) Query(terms []string, limit int) ([]uint32, error) {
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}

	idx.logger.Printf("titleindex: query=%q, limit=%d", clean, limit)

	boolQuery := bluge.NewBooleanQuery()
	for _, t := range clean {
		stem := porterstemmer.StemString(strings.ToLower(t))
		boolQuery.AddShould(bluge.NewWildcardQuery(stem + "*").SetField(titleField))
	}
	boolQuery.SetMinShould(1)

	if limit <= 0 {
		limit = defaultLimit
	}

	matches, err := idx.reader.Search(context.Background(), bluge.NewTopNSearch(limit, boolQuery))
	if err != nil {
		return nil, fmt.Errorf("titleindex: search failed: %w", err)
	}

	var out []uint32
	match, err := matches.Next()
	for err == nil && match != nil {
		var decodeErr error
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field != idxField {
				return true
			}
			num, derr := bluge.DecodeNumericFloat64(value)
			if derr != nil {
				decodeErr = derr
				return false
			}
			out = append(out, uint32(num))
			return false
		})
		if visitErr != nil {
			return nil, fmt.Errorf("titleindex: reading stored fields: %w", visitErr)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("titleindex: decoding idx field: %w", decodeErr)
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("titleindex: iterating results: %w", err)
	}
	return out, nil
}

// Count returns the total number of indexed titles, cached after the first
// call (a match-all count is otherwise expensive to recompute per request).
func (idx *Index) Count() (uint64, error) {
	idx.countMu.RLock()
	if idx.countKnown {
		count := idx.countCache
		idx.countMu.RUnlock()
		return count, nil
	}
	idx.countMu.RUnlock()

	idx.countMu.Lock()
	defer idx.countMu.Unlock()
	if idx.countKnown {
		return idx.countCache, nil
	}

	idx.logger.Println("titleindex: computing document count")
	req := bluge.NewTopNSearch(0, bluge.NewMatchAllQuery()).WithStandardAggregations()
	matches, err := idx.reader.Search(context.Background(), req)
	if err != nil {
		return 0, fmt.Errorf("titleindex: counting documents: %w", err)
	}
	count := matches.Aggregations().Count()
	idx.countCache = count
	idx.countKnown = true
	idx.logger.Printf("titleindex: document count: %d (cached)", count)
	return count, nil
}

// Random returns the directory index of a uniformly random indexed title.
func (idx *Index) Random() (uint32, error) {
	count, err := idx.Count()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("titleindex: index is empty")
	}

	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("titleindex: generating random offset: %w", err)
	}
	offset := int(binary.LittleEndian.Uint64(buf[:]) % count)

	req := bluge.NewTopNSearch(offset+1, bluge.NewMatchAllQuery())
	matches, err := idx.reader.Search(context.Background(), req)
	if err != nil {
		return 0, fmt.Errorf("titleindex: search failed: %w", err)
	}

	match, err := matches.Next()
	for i := 0; i < offset && err == nil && match != nil; i++ {
		match, err = matches.Next()
	}
	if err != nil {
		return 0, fmt.Errorf("titleindex: iterating to offset %d: %w", offset, err)
	}
	if match == nil {
		return 0, fmt.Errorf("titleindex: unexpected end of results at offset %d", offset)
	}

	var idxValue uint32
	var found bool
	visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
		if field != idxField {
			return true
		}
		if num, decErr := bluge.DecodeNumericFloat64(value); decErr == nil {
			idxValue = uint32(num)
			found = true
		}
		return false
	})
	if visitErr != nil {
		return 0, fmt.Errorf("titleindex: reading stored fields: %w", visitErr)
	}
	if !found {
		return 0, fmt.Errorf("titleindex: idx field missing on matched document")
	}
	return idxValue, nil
}
