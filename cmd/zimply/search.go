package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dylanmccall/zimply-core/pkg/bm25"
	"github.com/dylanmccall/zimply-core/pkg/titleindex"
	"github.com/dylanmccall/zimply-core/pkg/zim"
)

var (
	searchZimPath   string
	searchIndexPath string
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Query the title index and print BM25-ranked results",
	Args:  cobra.MinimumNArgs(1),
	Example: `  zimply search --zim ./data/wikipedia.zim golang concurrency`,
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	defaultZim := os.Getenv("ZIMPLY_ZIM")
	if defaultZim == "" {
		defaultZim = "./data/wikipedia.zim"
	}

	searchCmd.Flags().StringVarP(&searchZimPath, "zim", "z", defaultZim, "Path to the ZIM archive")
	searchCmd.Flags().StringVarP(&searchIndexPath, "index", "i", "", "Path to the title index (default: ZIM path with .bluge extension)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results to print")
}

func runSearch(terms []string) {
	path := searchIndexPath
	if path == "" {
		path = titleindex.DefaultIndexPath(searchZimPath)
	}

	idx, err := titleindex.Load(path)
	if err != nil {
		log.Fatalf("loading title index at %s: %v (run 'zimply index' first)", path, err)
	}
	defer idx.Close()

	f, err := os.Open(searchZimPath)
	if err != nil {
		log.Fatalf("opening %s: %v", searchZimPath, err)
	}
	defer f.Close()

	archive, err := zim.Open(f)
	if err != nil {
		log.Fatalf("reading ZIM header: %v", err)
	}
	defer archive.Close()

	candidates, err := idx.Query(terms, searchLimit*5)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}
	if len(candidates) == 0 {
		fmt.Println("no results")
		return
	}

	titles := make([]string, len(candidates))
	for i, c := range candidates {
		e, err := archive.GetEntryByIndex(c)
		if err != nil {
			continue
		}
		titles[i] = e.DisplayTitle()
	}

	ranker := bm25.New()
	scores := ranker.Score(terms, titles)

	type ranked struct {
		idx   uint32
		title string
		score float64
	}
	rows := make([]ranked, len(candidates))
	for i, c := range candidates {
		rows[i] = ranked{idx: c, title: titles[i], score: scores[i]}
	}
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].score > rows[j-1].score; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	if len(rows) > searchLimit {
		rows = rows[:searchLimit]
	}

	fmt.Printf("results for %q:\n", strings.Join(terms, " "))
	for _, r := range rows {
		fmt.Printf("%8.3f  %6d  %s\n", r.score, r.idx, r.title)
	}
}
