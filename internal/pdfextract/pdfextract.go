// Package pdfextract isolates PDF text decoding in a child process so a
// single malformed PDF can never crash (or spam) the parent ingestion run.
// The parent re-execs its own binary with a hidden "extract-pdf <path>"
// subcommand and reads the result off stdout through a simple sentinel
// protocol.
package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	startMarker = "<<<START_CONTENT>>>"
	endMarker   = "<<<END_CONTENT>>>"

	// ExitOK means extraction succeeded and stdout carries the markers.
	ExitOK = 0
	// ExitExtractFailed means the PDF could not be decoded at all.
	ExitExtractFailed = 1
	// ExitBadArgs means the subcommand was invoked incorrectly.
	ExitBadArgs = 2

	// Subcommand is the hidden CLI verb the parent re-execs with.
	Subcommand = "extract-pdf"
)

// ExtractFile decodes every page of the PDF at path and returns the
// concatenated plain text, unnormalized. Callers running this inside the
// child process are expected to print the result wrapped in the sentinel
// markers and exit with ExitOK or ExitExtractFailed.
func ExtractFile(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// RunChild implements the extract-pdf subcommand body: decode the PDF named
// by args[0], print it wrapped in sentinel markers, and return the process
// exit code the caller should use.
func RunChild(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "extract-pdf: expected exactly one PDF path argument")
		return ExitBadArgs
	}

	text, err := ExtractFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return ExitExtractFailed
	}

	fmt.Print(startMarker)
	fmt.Print(text)
	fmt.Print(endMarker)
	return ExitOK
}

// ExtractInChildProcess re-execs the current binary as "<exe> extract-pdf
// <path>", parses the sentinel-wrapped stdout, and returns the normalized
// text. A non-zero exit or missing markers is reported as an error rather
// than propagated as a crash.
func ExtractInChildProcess(ctx context.Context, path string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve current executable: %w", err)
	}

	cmd := exec.CommandContext(ctx, exe, Subcommand, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return "", fmt.Errorf("spawn extraction subprocess for %s: %w", path, runErr)
		}
	}

	out := stdout.String()
	start := strings.Index(out, startMarker)
	end := strings.Index(out, endMarker)
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("pdf extraction failed for %s: %s", path, strings.TrimSpace(stderr.String()))
	}

	raw := out[start+len(startMarker) : end]
	return NormalizeText(raw), nil
}

// NormalizeText fixes common ligature and Unicode punctuation artifacts
// left over from PDF text extraction, then collapses whitespace.
func NormalizeText(text string) string {
	replacer := strings.NewReplacer(
		"ﬀ", "ff",
		"ﬁ", "fi",
		"ﬂ", "fl",
		"ﬃ", "ffi",
		"ﬄ", "ffl",
		"ﬅ", "st",
		"ﬆ", "st",
		"Ĳ", "IJ",
		"ĳ", "ij",
		"Œ", "OE",
		"œ", "oe",
		"Æ", "AE",
		"æ", "ae",
		"’", "'",
		"‘", "'",
		"“", "\"",
		"”", "\"",
		"–", "-",
		"—", "-",
		"…", "...",
		" ", " ",
	)
	normalized := replacer.Replace(text)
	return strings.Join(strings.Fields(normalized), " ")
}
