// Package ingestion orchestrates turning scraped portal content into
// indexed documents: a full network sync (login, enumerate subjects, deep
// scrape, index) and a network-free local rescan that only re-walks
// already-downloaded subject directories.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/0xbiel/polirag/internal/config"
	"github.com/0xbiel/polirag/internal/document"
	"github.com/0xbiel/polirag/internal/logging"
	"github.com/0xbiel/polirag/internal/portal"
	"github.com/0xbiel/polirag/internal/rag"
	"github.com/0xbiel/polirag/internal/resourceproc"
)

// ErrNoCredentials is returned by Sync when the portal session is not
// already authenticated and no cached or environment credentials exist.
var ErrNoCredentials = fmt.Errorf("ingestion: no credentials available")

const summaryFileName = "summary.md"

// Orchestrator ties a portal client, the configured credential/provider
// store, and a RAG system together to drive ingestion.
type Orchestrator struct {
	system         *rag.System
	portalClient   *portal.Client
	cfg            *config.Config
	scrapedDataDir string
	logger         *slog.Logger
}

// New builds an Orchestrator over an already-constructed system and portal
// client. cfg is consulted for credential resolution and updated when a
// login performed with environment credentials should be cached.
func New(system *rag.System, portalClient *portal.Client, cfg *config.Config) (*Orchestrator, error) {
	dir, err := config.ScrapedDataDir()
	if err != nil {
		return nil, fmt.Errorf("ingestion: resolve scraped data dir: %w", err)
	}
	return &Orchestrator{
		system:         system,
		portalClient:   portalClient,
		cfg:            cfg,
		scrapedDataDir: dir,
		logger:         logging.Named("ingestion"),
	}, nil
}

// Sync performs a network sync: authenticate if needed, enumerate every
// subject, deep-scrape each one sequentially, and index its summary and
// extracted PDFs. In its default (incremental) mode the local index is
// never cleared up front, relying on the chunk-0 sentinel to skip
// already-indexed documents, so a failed or interrupted run never discards
// prior progress. When full is true, the index and the scraped-data
// directory are wiped before enumeration, so every subject is re-scraped
// and re-indexed from scratch.
func (o *Orchestrator) Sync(ctx context.Context, full bool) error {
	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID)
	logger.Info("starting sync", "full", full)

	creds, err := o.ensureAuthenticated(ctx, logger)
	if err != nil {
		return err
	}

	if full {
		logger.Info("full sync: clearing index and scraped data directory")
		if err := o.system.Clear(ctx); err != nil {
			logger.Warn("clear index failed", "error", err)
		}
		if err := os.RemoveAll(o.scrapedDataDir); err != nil {
			logger.Warn("remove scraped data dir failed", "error", err)
		}
		if err := os.MkdirAll(o.scrapedDataDir, 0o700); err != nil {
			return fmt.Errorf("ingestion: recreate scraped data dir: %w", err)
		}
	}

	logger.Info("fetching subjects")
	subjects, err := o.portalClient.ListSubjects(ctx, creds)
	if err != nil {
		return fmt.Errorf("ingestion: list subjects: %w", err)
	}
	logger.Info("found subjects, starting content scrape", "count", len(subjects))

	for i, sub := range subjects {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("scraping subject", "index", i + 1, "total", len(subjects), "name", sub.Name)

		basePath, scrapeErr := o.portalClient.DeepScrape(ctx, creds, o.scrapedDataDir, sub)
		if scrapeErr != nil {
			logger.Error("scrape failed, skipping subject", "subject", sub.Name, "error", scrapeErr)
			continue
		}

		if err := o.indexSubjectDir(ctx, sub.ID, sub.Name, sub.URL, basePath, logger); err != nil {
			logger.Error("indexing failed for subject", "subject", sub.Name, "error", err)
		}

		// Save after every subject so a long sync's progress survives an
		// interruption partway through.
		if err := o.system.Save(); err != nil {
			logger.Warn("checkpoint save failed", "subject", sub.Name, "error", err)
		}
	}

	logger.Info("saving index")
	if err := o.system.Save(); err != nil {
		return fmt.Errorf("ingestion: final save: %w", err)
	}
	logger.Info("sync complete")
	return nil
}

// ensureAuthenticated checks the portal session and, if it is not live,
// resolves credentials (cache, then environment) and logs in. A login
// performed with environment credentials is cached for next run; a login
// failure clears any bad cached credentials so the next run re-resolves
// from scratch instead of retrying the same rejected pair forever.
func (o *Orchestrator) ensureAuthenticated(ctx context.Context, logger *slog.Logger) (portal.Credentials, error) {
	connected, err := o.portalClient.CheckConnection(ctx)
	if err != nil {
		logger.Warn("connection check failed", "error", err)
	}
	if connected {
		cached, _ := o.cfg.GetCredentials()
		return portal.Credentials{Username: cached.Username, Pin: cached.Pin}, nil
	}

	logger.Warn("not authenticated, resolving credentials")
	resolved, source := o.cfg.ResolveCredentials()
	if source == config.CredentialSourceNone {
		return portal.Credentials{}, ErrNoCredentials
	}

	creds := portal.Credentials{Username: resolved.Username, Pin: resolved.Pin}
	logger.Info("attempting login", "username", resolved.Username)
	if err := o.portalClient.Login(ctx, creds); err != nil {
		_ = o.cfg.ClearCredentials()
		return portal.Credentials{}, fmt.Errorf("ingestion: login failed: %w", err)
	}

	if source == config.CredentialSourceEnv {
		if err := o.cfg.SaveCredentials(resolved.Username, resolved.Pin); err != nil {
			logger.Warn("failed to cache credentials", "error", err)
		}
	}
	return creds, nil
}

// indexSubjectDir reads a scraped subject's summary.md, appends a listing
// of its locally downloaded resource files, indexes it as a subject-summary
// document if not already present, then processes and indexes its
// extracted PDFs.
func (o *Orchestrator) indexSubjectDir(ctx context.Context, subjectID, subjectName, subjectURL, dirPath string, logger *slog.Logger) error {
	summaryPath := filepath.Join(dirPath, summaryFileName)
	content, err := os.ReadFile(summaryPath)
	if err != nil {
		logger.Warn("no summary.md found", "subject", subjectName)
		return nil
	}

	fullText := fmt.Sprintf("Subject: %s\nURL: %s\n\n%s%s",
		subjectName, subjectURL, string(content), localFileListing(dirPath))

	has, err := o.system.Has(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("check existing subject summary: %w", err)
	}
	if !has {
		logger.Info("adding new subject summary", "subject", subjectName)
		meta := map[string]string{document.MetaType: document.TypeSubject, document.MetaName: subjectName}
		if err := o.system.AddDocument(ctx, subjectID, fullText, document.DefaultUserID, meta); err != nil {
			return fmt.Errorf("add subject summary: %w", err)
		}
	} else {
		logger.Debug("skipping existing subject summary", "subject", subjectName)
	}

	extracted, err := resourceproc.ProcessResources(ctx, dirPath)
	if err != nil {
		logger.Error("error processing resources", "subject", subjectName, "error", err)
		extracted = nil
	}

	for _, doc := range extracted {
		if err := o.indexExtractedDocument(ctx, subjectID, subjectName, doc, logger); err != nil {
			logger.Error("error indexing extracted document", "subject", subjectName, "path", doc.RelPath, "error", err)
		}
	}
	return nil
}

// localFileListing formats the "[Local Files]:" section appended to a
// subject summary, one bullet per entry under dirPath/resources.
func localFileListing(dirPath string) string {
	resourcesPath := filepath.Join(dirPath, "resources")
	entries, err := os.ReadDir(resourcesPath)
	if err != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n[Local Files]:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s\n", e.Name())
	}
	return b.String()
}

// indexExtractedDocument chunks and indexes a single extracted PDF,
// skipping it entirely if its chunk-0 sentinel is already indexed, and
// removing a stale pre-chunking unchunked entry if one is found under the
// bare document id.
func (o *Orchestrator) indexExtractedDocument(ctx context.Context, subjectID, subjectName string, doc resourceproc.ExtractedDocument, logger *slog.Logger) error {
	docID := fmt.Sprintf("%s/%s", subjectID, doc.RelPath)
	chunk0ID := document.ChunkSentinelID(subjectID, doc.RelPath)

	already, err := o.system.Has(ctx, chunk0ID)
	if err != nil {
		return fmt.Errorf("check chunk sentinel: %w", err)
	}
	if already {
		logger.Debug("skipping existing pdf", "path", doc.RelPath)
		return nil
	}

	if legacy, err := o.system.Has(ctx, docID); err == nil && legacy {
		logger.Info("removing old unchunked entry", "path", doc.RelPath)
		if err := o.system.Delete(ctx, docID); err != nil {
			logger.Warn("failed to remove legacy entry", "path", doc.RelPath, "error", err)
		}
	}

	return o.indexChunks(ctx, subjectID, subjectName, doc, logger)
}

// indexChunks splits an extracted document's text and indexes each chunk
// under its hierarchical id, prefixed with a provenance header.
func (o *Orchestrator) indexChunks(ctx context.Context, subjectID, subjectName string, doc resourceproc.ExtractedDocument, logger *slog.Logger) error {
	filename := filepath.Base(doc.RelPath)
	chunks := rag.ChunkText(doc.Text)
	if len(chunks) == 0 {
		chunks = []string{doc.Text}
	}

	logger.Info("indexing new pdf", "path", doc.RelPath, "chunks", len(chunks))
	meta := map[string]string{document.MetaType: document.TypePDF, document.MetaFilename: doc.RelPath}

	for i, chunk := range chunks {
		header := rag.ChunkHeader(filename, i, len(chunks), subjectName)
		id := document.ChunkID(subjectID, doc.RelPath, i)
		if err := o.system.AddDocument(ctx, id, header+chunk, document.DefaultUserID, meta); err != nil {
			return fmt.Errorf("add chunk %s: %w", id, err)
		}
	}
	return nil
}
