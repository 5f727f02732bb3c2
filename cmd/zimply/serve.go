package main

import (
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/dylanmccall/zimply-core/internal/server"
	"github.com/dylanmccall/zimply-core/pkg/titleindex"
	"github.com/dylanmccall/zimply-core/pkg/zim"
)

var (
	zimPath   string
	port      string
	indexPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zimply HTTP server",
	Long: `Start the zimply HTTP server, serving articles from a ZIM
archive and, if a title index has been built, ranked title search.`,
	Example: `  zimply serve
  zimply serve --zim ./data/wikipedia.zim --port 8080`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaultZim := os.Getenv("ZIMPLY_ZIM")
	if defaultZim == "" {
		defaultZim = "./data/wikipedia.zim"
	}

	serveCmd.Flags().StringVarP(&zimPath, "zim", "z", defaultZim, "Path to the ZIM archive")
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "HTTP port to listen on")
	serveCmd.Flags().StringVarP(&indexPath, "index", "i", "", "Path to the title index (default: ZIM path with .bluge extension)")

	// Also register on the root command so "zimply --zim foo.zim" (no
	// subcommand) defaults to serving, same as "zimply serve --zim foo.zim".
	rootCmd.Flags().StringVarP(&zimPath, "zim", "z", defaultZim, "Path to the ZIM archive")
	rootCmd.Flags().StringVarP(&port, "port", "p", "8080", "HTTP port to listen on")
}

func runServe() {
	f, err := os.Open(zimPath)
	if err != nil {
		log.Fatalf("opening %s: %v", zimPath, err)
	}

	archive, err := zim.Open(f)
	if err != nil {
		log.Fatalf("reading ZIM header: %v", err)
	}
	defer archive.Close()

	path := indexPath
	if path == "" {
		path = titleindex.DefaultIndexPath(zimPath)
	}

	if _, statErr := os.Stat(path); statErr != nil {
		log.Printf("no title index found at %s; building one now", path)
		if err := titleindex.Build(archive, path, titleindex.WithLogger(log.Default())); err != nil {
			log.Printf("building title index: %v (search disabled)", err)
		}
	}

	var idx *titleindex.Index
	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = titleindex.Load(path, titleindex.WithLogger(log.Default()))
		if err != nil {
			log.Printf("loading title index at %s: %v (search disabled)", path, err)
		} else {
			defer idx.Close()
		}
	}

	e := echo.New()
	server.New(archive, idx, log.Default()).Register(e)

	log.Printf("serving %s on :%s", zimPath, port)
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
