package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xbiel/polirag/internal/document"
	"github.com/0xbiel/polirag/internal/rag"
	"github.com/0xbiel/polirag/internal/resourceproc"
)

// ScanLocal re-walks every already-downloaded subject directory without
// touching the network: no login, no subject enumeration, no deep scrape.
// It returns the ids of every document newly added, so a caller (the CLI)
// can report how many chunks a rescan actually indexed.
func (o *Orchestrator) ScanLocal(ctx context.Context, progress func(string)) ([]string, error) {
	report := func(msg string) {
		if progress != nil {
			progress(msg)
		}
	}

	report("Scanning local data directory...")
	if _, err := os.Stat(o.scrapedDataDir); os.IsNotExist(err) {
		report("Data directory not found.")
		return nil, nil
	}

	entries, err := os.ReadDir(o.scrapedDataDir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read scraped data dir: %w", err)
	}

	var addedIDs []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return addedIDs, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dirPath := filepath.Join(o.scrapedDataDir, entry.Name())
		report(fmt.Sprintf("Checking subject: %s", entry.Name()))

		added, err := o.scanLocalSubjectDir(ctx, entry.Name(), dirPath)
		if err != nil {
			o.logger.Error("error processing resources", "subject", entry.Name(), "error", err)
			continue
		}
		addedIDs = append(addedIDs, added...)
	}

	if len(addedIDs) > 0 {
		if err := o.system.Save(); err != nil {
			return addedIDs, fmt.Errorf("ingestion: save after local scan: %w", err)
		}
	}
	return addedIDs, nil
}

// scanLocalSubjectDir processes and indexes a single subject's resources
// without reading or trusting anything but what is already on disk.
func (o *Orchestrator) scanLocalSubjectDir(ctx context.Context, dirName, dirPath string) ([]string, error) {
	extracted, err := resourceproc.ProcessResources(ctx, dirPath)
	if err != nil {
		return nil, err
	}

	subjectID := recoverSubjectID(dirPath, dirName)

	var addedIDs []string
	for _, doc := range extracted {
		chunk0ID := document.ChunkSentinelID(subjectID, doc.RelPath)
		already, err := o.system.Has(ctx, chunk0ID)
		if err != nil {
			return addedIDs, fmt.Errorf("check chunk sentinel: %w", err)
		}
		if already {
			continue
		}

		docID := fmt.Sprintf("%s/%s", subjectID, doc.RelPath)
		if legacy, err := o.system.Has(ctx, docID); err == nil && legacy {
			o.logger.Info("removing old unchunked entry", "path", doc.RelPath)
			_ = o.system.Delete(ctx, docID)
		}

		ids, err := o.indexChunksWithIDs(ctx, subjectID, dirName, doc)
		if err != nil {
			return addedIDs, err
		}
		addedIDs = append(addedIDs, ids...)
	}
	return addedIDs, nil
}

// indexChunksWithIDs is indexChunks plus the ids it wrote, for ScanLocal's
// added-document report.
func (o *Orchestrator) indexChunksWithIDs(ctx context.Context, subjectID, subjectName string, doc resourceproc.ExtractedDocument) ([]string, error) {
	filename := filepath.Base(doc.RelPath)
	chunks := rag.ChunkText(doc.Text)
	if len(chunks) == 0 {
		chunks = []string{doc.Text}
	}

	meta := map[string]string{document.MetaType: document.TypePDF, document.MetaFilename: doc.RelPath}
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		header := rag.ChunkHeader(filename, i, len(chunks), subjectName)
		id := document.ChunkID(subjectID, doc.RelPath, i)
		if err := o.system.AddDocument(ctx, id, header+chunk, document.DefaultUserID, meta); err != nil {
			return ids, fmt.Errorf("add chunk %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// recoverSubjectID reads the "URL:" line polirag writes into every
// summary.md and recovers the portal subject id from its trailing path
// segment, falling back to the scraped directory name when no summary
// exists or it carries no such line.
func recoverSubjectID(dirPath, dirName string) string {
	summaryPath := filepath.Join(dirPath, summaryFileName)
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		return dirName
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "URL:") {
			continue
		}
		url := strings.TrimSpace(line)
		if pos := strings.LastIndex(url, "/"); pos >= 0 {
			return strings.TrimSpace(url[pos+1:])
		}
		return dirName
	}
	return dirName
}
