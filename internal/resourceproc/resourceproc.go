// Package resourceproc unpacks downloaded subject resources (zip archives)
// and walks a subject's resource directories to extract PDF text, handing
// each PDF to an isolated child-process decoder.
package resourceproc

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xbiel/polirag/internal/pdfextract"
)

// ExtractedDocument pairs a PDF's path (relative to the subject directory)
// with its normalized extracted text.
type ExtractedDocument struct {
	RelPath string
	Text    string
}

// UnzipAll extracts every .zip file found directly in resourcesDir into
// resourcesDir/extracted/<zip-stem>/, skipping any archive entry whose
// resolved path would escape the destination directory.
func UnzipAll(resourcesDir string) error {
	entries, err := os.ReadDir(resourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read resources dir %s: %w", resourcesDir, err)
	}

	extractedRoot := filepath.Join(resourcesDir, "extracted")
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			continue
		}
		archivePath := filepath.Join(resourcesDir, entry.Name())
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		target := filepath.Join(extractedRoot, stem)
		if err := unzipOne(archivePath, target); err != nil {
			return fmt.Errorf("extract %s: %w", archivePath, err)
		}
	}
	return nil
}

// unzipOne extracts a single zip archive into destDir, rejecting any entry
// whose cleaned path would land outside destDir (zip-slip).
func unzipOne(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		outPath, err := sanitizedJoin(destDir, f.Name)
		if err != nil {
			continue // unsafe entry, skip rather than abort the whole archive
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", outPath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", outPath, err)
		}

		if err := extractEntry(f, outPath); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, outPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// sanitizedJoin joins destDir with the archive-relative name, rejecting any
// result that escapes destDir after cleaning — the Go equivalent of the
// zip crate's enclosed_name() safety check.
func sanitizedJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(destDir, name))
	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return "", err
	}
	cleanedAbs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", err
	}
	if cleanedAbs != destAbs && !strings.HasPrefix(cleanedAbs, destAbs+string(os.PathSeparator)) {
		return "", fmt.Errorf("resourceproc: zip entry %q escapes destination", name)
	}
	return cleaned, nil
}

// ProcessResources unzips every archive under subjectPath/resources, then
// walks both resources/ and resources/extracted/ for PDFs, extracting each
// one's text via an isolated child process. Failures on individual PDFs are
// skipped (logged by the caller), never fatal to the whole subject.
func ProcessResources(ctx context.Context, subjectPath string) ([]ExtractedDocument, error) {
	resourcesPath := filepath.Join(subjectPath, "resources")
	if _, err := os.Stat(resourcesPath); os.IsNotExist(err) {
		return nil, nil
	}

	if err := UnzipAll(resourcesPath); err != nil {
		return nil, fmt.Errorf("unzip resources: %w", err)
	}

	var docs []ExtractedDocument
	dirsToScan := []string{resourcesPath, filepath.Join(resourcesPath, "extracted")}

	for _, dir := range dirsToScan {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries rather than aborting the walk
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			text, extractErr := pdfextract.ExtractInChildProcess(ctx, path)
			if extractErr != nil {
				return nil
			}
			if strings.TrimSpace(text) == "" {
				return nil
			}

			relPath, err := filepath.Rel(subjectPath, path)
			if err != nil {
				relPath = path
			}
			docs = append(docs, ExtractedDocument{RelPath: relPath, Text: text})
			return nil
		})
		if err != nil {
			return docs, err
		}
	}

	return docs, nil
}
