// Package server exposes a ZIM archive, its title index, and a BM25
// ranker as a small JSON HTTP API.
package server

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/dylanmccall/zimply-core/pkg/bm25"
	"github.com/dylanmccall/zimply-core/pkg/titleindex"
	"github.com/dylanmccall/zimply-core/pkg/zim"
)

// Server binds an open archive, an optional title index, and a BM25
// ranker to a set of HTTP handlers. Unlike the global-state collaborator
// this is adapted from, all state lives on the receiver so multiple
// archives could, in principle, be served from one process.
type Server struct {
	archive  *zim.Archive
	index    *titleindex.Index // nil: /search and /random are unavailable
	ranker   bm25.Ranker
	logger   *log.Logger
	language string // ISO 639-1, resolved once at construction; "en" if unknown
}

// New constructs a Server. index may be nil if no title index was built
// for archive; logger may be nil to use log.Default(). The archive's
// metadata "language" key is resolved to its ISO 639-1 form once here,
// falling back to "en" when the key is absent or unrecognized.
func New(archive *zim.Archive, index *titleindex.Index, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{archive: archive, index: index, ranker: bm25.New().WithLogger(logger), logger: logger, language: "en"}

	if meta, err := archive.Metadata(); err == nil {
		if code, ok := zim.ISO639_1(meta["language"]); ok {
			s.language = code
		}
	}
	logger.Printf("server: resolved archive language to %q", s.language)

	return s
}

// entryJSON is the wire representation of a zim.Entry.
type entryJSON struct {
	Index      uint32 `json:"index"`
	Namespace  string `json:"namespace"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	MimeType   string `json:"mimeType,omitempty"`
	IsRedirect bool   `json:"isRedirect"`
}

func (s *Server) toJSON(e zim.Entry) entryJSON {
	mt, _ := s.archive.MimeType(e)
	return entryJSON{
		Index:      e.Index,
		Namespace:  string(e.Namespace),
		URL:        e.URL,
		Title:      e.DisplayTitle(),
		MimeType:   mt,
		IsRedirect: e.IsRedirect,
	}
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

func parseIndex(c echo.Context, param string) (uint32, error) {
	v, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// handleGetEntry serves GET /entries/:idx.
func (s *Server) handleGetEntry(c echo.Context) error {
	idx, err := parseIndex(c, "idx")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid index")
	}

	e, err := s.archive.GetEntryByIndex(idx)
	if err != nil {
		s.logger.Printf("GetEntryByIndex(%d): %v", idx, err)
		return errorJSON(c, http.StatusNotFound, "entry not found")
	}
	return c.JSON(http.StatusOK, s.toJSON(e))
}

// handleGetArticle serves GET /articles/:idx?follow=true, returning the
// resolved article plus its decompressed body. With follow=false, a
// redirect entry is returned as JSON describing its target index instead
// of a blob.
func (s *Server) handleGetArticle(c echo.Context) error {
	idx, err := parseIndex(c, "idx")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid index")
	}

	follow := true
	if v := c.QueryParam("follow"); v != "" {
		follow, _ = strconv.ParseBool(v)
	}

	e, err := s.archive.GetArticleByIndex(idx, follow)
	if err != nil {
		s.logger.Printf("GetArticleByIndex(%d): %v", idx, err)
		return errorJSON(c, http.StatusNotFound, "article not found")
	}

	if e.IsRedirect {
		return c.JSON(http.StatusOK, map[string]any{
			"redirectIndex": e.RedirectIdx,
		})
	}

	blob, err := s.archive.ReadBlob(e.ClusterNum, e.BlobNum)
	if err != nil {
		s.logger.Printf("ReadBlob(%d,%d): %v", e.ClusterNum, e.BlobNum, err)
		return errorJSON(c, http.StatusInternalServerError, "failed to read article body")
	}

	mt, _ := s.archive.MimeType(e)
	if mt == "" {
		mt = "application/octet-stream"
	}
	return c.Blob(http.StatusOK, mt, blob)
}

// handleLookup serves GET /lookup?ns=A&url=Some_Page.
func (s *Server) handleLookup(c echo.Context) error {
	ns := c.QueryParam("ns")
	url := c.QueryParam("url")
	if ns == "" || url == "" {
		return errorJSON(c, http.StatusBadRequest, "ns and url are required")
	}

	e, ok, err := s.archive.GetEntryByURL(ns[0], url)
	if err != nil {
		s.logger.Printf("GetEntryByURL(%c,%s): %v", ns[0], url, err)
		return errorJSON(c, http.StatusInternalServerError, "lookup failed")
	}
	if !ok {
		return errorJSON(c, http.StatusNotFound, "entry not found")
	}
	return c.JSON(http.StatusOK, s.toJSON(e))
}

// handleMainPage serves GET /main.
func (s *Server) handleMainPage(c echo.Context) error {
	e, ok, err := s.archive.GetMainPage()
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to resolve main page")
	}
	if !ok {
		return errorJSON(c, http.StatusNotFound, "archive has no main page")
	}
	return c.JSON(http.StatusOK, s.toJSON(e))
}

// handleMetadata serves GET /metadata. The response is augmented with
// resolvedLanguage, the ISO 639-1 form of the archive's language metadata
// computed once at Server construction.
func (s *Server) handleMetadata(c echo.Context) error {
	meta, err := s.archive.Metadata()
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to read metadata")
	}
	resp := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		resp[k] = v
	}
	resp["resolvedLanguage"] = s.language
	return c.JSON(http.StatusOK, resp)
}

// searchResultJSON is one ranked candidate returned by /search.
type searchResultJSON struct {
	Index uint32  `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// handleSearch serves GET /search?q=...&limit=10: resolves candidates via
// the title index's prefix-wildcard match, then re-ranks them with BM25
// over their titles against the raw query terms.
func (s *Server) handleSearch(c echo.Context) error {
	if s.index == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "no title index is loaded")
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return errorJSON(c, http.StatusBadRequest, "q is required")
	}
	terms := strings.Fields(query)

	limit := 10
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	candidates, err := s.index.Query(terms, limit*5)
	if err != nil {
		s.logger.Printf("titleindex.Query(%v): %v", terms, err)
		return errorJSON(c, http.StatusInternalServerError, "search failed")
	}
	if len(candidates) == 0 {
		return c.JSON(http.StatusOK, []searchResultJSON{})
	}

	titles := make([]string, len(candidates))
	for i, idx := range candidates {
		e, err := s.archive.GetEntryByIndex(idx)
		if err != nil {
			continue
		}
		titles[i] = e.DisplayTitle()
	}

	scores := s.ranker.Score(terms, titles)

	results := make([]searchResultJSON, len(candidates))
	for i, idx := range candidates {
		results[i] = searchResultJSON{Index: idx, Title: titles[i], Score: scores[i]}
	}
	sortByScoreDescending(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return c.JSON(http.StatusOK, results)
}

// sortByScoreDescending is a small insertion sort: result sets returned by
// the title index are small (limit*5 candidates), so this avoids pulling
// in sort.Slice's reflection-based comparator for a handful of elements.
func sortByScoreDescending(results []searchResultJSON) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// handleRandom serves GET /random.
func (s *Server) handleRandom(c echo.Context) error {
	if s.index == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "no title index is loaded")
	}

	idx, err := s.index.Random()
	if err != nil {
		s.logger.Printf("titleindex.Random(): %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to pick a random article")
	}

	e, err := s.archive.GetArticleByIndex(idx, true)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to resolve random article")
	}
	return c.JSON(http.StatusOK, s.toJSON(e))
}

// Register wires every handler onto e, including the rate-limiting
// middleware the archive-serving routes run behind.
func (s *Server) Register(e *echo.Echo) {
	config := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(20),
				Burst:     40,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return errorJSON(ctx, http.StatusForbidden, "rate limiter error")
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return errorJSON(ctx, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		},
	}
	e.Use(middleware.RateLimiterWithConfig(config))

	e.GET("/entries/:idx", s.handleGetEntry)
	e.GET("/articles/:idx", s.handleGetArticle)
	e.GET("/lookup", s.handleLookup)
	e.GET("/main", s.handleMainPage)
	e.GET("/metadata", s.handleMetadata)
	e.GET("/search", s.handleSearch)
	e.GET("/random", s.handleRandom)
}
