package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dylanmccall/zimply-core/pkg/titleindex"
	"github.com/dylanmccall/zimply-core/pkg/zim"
)

var (
	indexZimPath    string
	indexOutputPath string
	indexForce      bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build a title search index from a ZIM file",
	Long: `Build a persistent title search index from a ZIM archive. The
index enables fast, ranked title search without re-scanning the archive.

The index is stored next to the ZIM file with a .bluge extension by
default.`,
	Example: `  zimply index --zim ./data/wikipedia.zim
  zimply index --zim ./data/wikipedia.zim --output ./data/wikipedia.bluge`,
	Run: func(cmd *cobra.Command, args []string) {
		runIndex()
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	defaultZim := os.Getenv("ZIMPLY_ZIM")
	if defaultZim == "" {
		defaultZim = "./data/wikipedia.zim"
	}

	indexCmd.Flags().StringVarP(&indexZimPath, "zim", "z", defaultZim, "Path to the ZIM archive")
	indexCmd.Flags().StringVarP(&indexOutputPath, "output", "o", "", "Output path for the index (default: ZIM path with .bluge extension)")
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "Rebuild even if an index already exists at the output path")
}

func runIndex() {
	if _, err := os.Stat(indexZimPath); os.IsNotExist(err) {
		log.Fatalf("ZIM file not found: %s", indexZimPath)
	}

	outputPath := indexOutputPath
	if outputPath == "" {
		outputPath = titleindex.DefaultIndexPath(indexZimPath)
	}

	f, err := os.Open(indexZimPath)
	if err != nil {
		log.Fatalf("opening %s: %v", indexZimPath, err)
	}
	defer f.Close()

	archive, err := zim.Open(f)
	if err != nil {
		log.Fatalf("reading ZIM header: %v", err)
	}
	defer archive.Close()

	if indexForce {
		if err := os.RemoveAll(outputPath); err != nil {
			log.Fatalf("removing existing index at %s: %v", outputPath, err)
		}
	}

	fmt.Printf("Building title index...\n")
	fmt.Printf("  ZIM file: %s\n", indexZimPath)
	fmt.Printf("  Output:   %s\n", outputPath)

	start := time.Now()
	if err := titleindex.Build(archive, outputPath, titleindex.WithLogger(log.Default())); err != nil {
		log.Fatalf("failed to build index: %v", err)
	}

	fmt.Printf("Index built successfully in %s\n", time.Since(start).Round(time.Millisecond))
}
