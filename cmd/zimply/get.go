package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dylanmccall/zimply-core/pkg/zim"
)

var (
	getZimPath        string
	getIndex          uint32
	getURL            string
	getNS             string
	getFollowRedirect bool
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print one article's body to stdout",
	Long: `Resolve a single article, either by directory index or by
(namespace, url), following redirects, and write its decompressed body
to stdout.`,
	Example: `  zimply get --zim ./data/wikipedia.zim --index 42
  zimply get --zim ./data/wikipedia.zim --ns A --url Go_(programming_language)`,
	Run: func(cmd *cobra.Command, args []string) {
		runGet()
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	defaultZim := os.Getenv("ZIMPLY_ZIM")
	if defaultZim == "" {
		defaultZim = "./data/wikipedia.zim"
	}

	getCmd.Flags().StringVarP(&getZimPath, "zim", "z", defaultZim, "Path to the ZIM archive")
	getCmd.Flags().Uint32VarP(&getIndex, "index", "i", 0, "Directory index to fetch")
	getCmd.Flags().StringVar(&getURL, "url", "", "URL to fetch (used with --ns instead of --index)")
	getCmd.Flags().StringVar(&getNS, "ns", "A", "Namespace to look up --url in")
	getCmd.Flags().BoolVar(&getFollowRedirect, "follow-redirect", true, "Follow redirect entries to their target article")
}

func runGet() {
	f, err := os.Open(getZimPath)
	if err != nil {
		log.Fatalf("opening %s: %v", getZimPath, err)
	}
	defer f.Close()

	archive, err := zim.Open(f)
	if err != nil {
		log.Fatalf("reading ZIM header: %v", err)
	}
	defer archive.Close()

	var entry zim.Entry
	if getURL != "" {
		if getNS == "" {
			log.Fatal("--ns is required when --url is given")
		}
		e, ok, err := archive.GetArticleByURL(getNS[0], getURL, getFollowRedirect)
		if err != nil {
			log.Fatalf("looking up %c/%s: %v", getNS[0], getURL, err)
		}
		if !ok {
			log.Fatalf("%c/%s: not found", getNS[0], getURL)
		}
		entry = e
	} else {
		e, err := archive.GetArticleByIndex(getIndex, getFollowRedirect)
		if err != nil {
			log.Fatalf("index %d: %v", getIndex, err)
		}
		entry = e
	}

	if entry.IsRedirect {
		fmt.Fprintf(os.Stderr, "# %s (%s) -> redirects to entry %d (not followed)\n", entry.DisplayTitle(), entry.URL, entry.RedirectIdx)
		return
	}

	blob, err := archive.ReadBlob(entry.ClusterNum, entry.BlobNum)
	if err != nil {
		log.Fatalf("reading blob (%d,%d): %v", entry.ClusterNum, entry.BlobNum, err)
	}

	fmt.Fprintf(os.Stderr, "# %s (%s)\n", entry.DisplayTitle(), entry.URL)
	os.Stdout.Write(blob)
}
