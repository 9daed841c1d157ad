// Command polirag is a personal RAG assistant over a university portal: it
// scrapes course content, keeps a local vector index, and answers questions
// grounded in retrieved passages through an OpenAI-compatible chat backend.
package main

import (
	"fmt"
	"os"

	"github.com/0xbiel/polirag/internal/pdfextract"
)

func main() {
	// The hidden extract-pdf verb is handled before cobra ever sees argv: it
	// re-execs as a short-lived decode-and-print child, and has no business
	// paying for config/model/store bootstrap on every PDF.
	if len(os.Args) > 1 && os.Args[1] == pdfextract.Subcommand {
		os.Exit(pdfextract.RunChild(os.Args[2:]))
	}

	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
