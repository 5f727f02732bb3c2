package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dylanmccall/zimply-core/pkg/zim"
)

var (
	infoZimPath string
	infoList    bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print header and metadata summary for a ZIM file",
	Long: `Print a ZIM archive's header counts and metadata, optionally
followed by a full listing of its directory entries.`,
	Run: func(cmd *cobra.Command, args []string) {
		runInfo()
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	defaultZim := os.Getenv("ZIMPLY_ZIM")
	if defaultZim == "" {
		defaultZim = "./data/wikipedia.zim"
	}

	infoCmd.Flags().StringVarP(&infoZimPath, "zim", "z", defaultZim, "Path to the ZIM archive")
	infoCmd.Flags().BoolVarP(&infoList, "list", "l", false, "List every directory entry (preloads the URL-pointer table for speed)")
}

func runInfo() {
	f, err := os.Open(infoZimPath)
	if err != nil {
		log.Fatalf("opening %s: %v", infoZimPath, err)
	}
	defer f.Close()

	archive, err := zim.Open(f)
	if err != nil {
		log.Fatalf("reading ZIM header: %v", err)
	}
	defer archive.Close()

	fmt.Printf("entries:   %d\n", archive.Len())

	if main, ok, err := archive.GetMainPage(); err == nil && ok {
		fmt.Printf("main page: %c/%s (%q)\n", main.Namespace, main.URL, main.DisplayTitle())
	} else {
		fmt.Println("main page: (none)")
	}

	meta, err := archive.Metadata()
	if err != nil {
		log.Fatalf("reading metadata: %v", err)
	}
	for _, key := range []string{"title", "creator", "publisher", "language", "date"} {
		if v, ok := meta[key]; ok {
			fmt.Printf("%-10s %s\n", key+":", v)
		}
	}

	if !infoList {
		return
	}

	if err := archive.Preload(); err != nil {
		log.Fatalf("preloading pointer table: %v", err)
	}
	for i := uint32(0); i < archive.Len(); i++ {
		e, err := archive.GetEntryByIndex(i)
		if err != nil {
			log.Fatalf("entry %d: %v", i, err)
		}
		kind := "article"
		if e.IsRedirect {
			kind = "redirect"
		}
		fmt.Printf("%6d  %c  %-8s  %s\n", e.Index, e.Namespace, kind, e.URL)
	}
}
