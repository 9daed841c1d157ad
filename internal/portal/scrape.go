package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/0xbiel/polirag/internal/document"
)

const (
	downloadWaitInitial  = 5 * time.Second
	downloadWaitPoll     = 2 * time.Second
	downloadWaitMax      = 120 * time.Second
	dashboardTextCharCap = 3000
)

// toolLinksScript classifies the current subject site's navigation links
// into the four tool categories DeepScrape visits, by matching (localized)
// link text keywords rather than relying on stable tool ids.
const toolLinksScript = `
(function() {
	let result = {};
	let container = document.querySelector('#toolMenu') || document;
	let links = Array.from(container.querySelectorAll('a'));
	links.forEach(l => {
		let t = (l.innerText || l.title || "").toLowerCase();
		let href = l.href;
		let currentSite = window.location.pathname.match(/\/site\/([^\/]+)/);
		let linkSite = href.match(/\/site\/([^\/]+)/);
		if (currentSite && linkSite && currentSite[1] !== linkSite[1]) return;

		if (t.includes('anuncis') || t.includes('avisos') || t.includes('announcements')) result['announcements'] = href;
		if (t.includes('lliçons') || t.includes('lecciones') || t.includes('lessonbuilder') || t.includes('contenidos')) result['lessons'] = href;
		if (t.includes('recursos') || t.includes('resources')) result['resources'] = href;
		if (t.includes('guia') || l.querySelector('.si-es-upv-webasipublic')) result['guiaDocent'] = href;
	});
	return JSON.stringify(result);
})()
`

// toolLinks is the decoded result of toolLinksScript.
type toolLinks struct {
	Announcements string `json:"announcements"`
	Lessons       string `json:"lessons"`
	Resources     string `json:"resources"`
	GuiaDocent    string `json:"guiaDocent"`
}

// DeepScrape visits a single subject's dashboard, announcements, lessons,
// and resources tools, downloads its shared resources as a zip, prints its
// teaching guide to PDF when reachable, and writes an accumulated
// summary.md under scrapedDataDir/<sanitized subject name>/. It returns the
// subject's base directory. Subjects must be processed one at a time
// through the same Client: SetDownloadBehavior scopes the browser's whole
// process, not a single tab, so concurrent downloads would race into the
// wrong directories.
func (c *Client) DeepScrape(ctx context.Context, creds Credentials, scrapedDataDir string, sub document.Subject) (string, error) {
	tabCtx, cancel := c.newTab()
	defer cancel()

	basePath := filepath.Join(scrapedDataDir, sanitizeSubjectName(sub.Name))
	resourcesDir := filepath.Join(basePath, "resources")
	if err := os.MkdirAll(resourcesDir, 0o700); err != nil {
		return "", fmt.Errorf("portal: create subject directory: %w", err)
	}
	absResources, err := filepath.Abs(resourcesDir)
	if err != nil {
		return "", fmt.Errorf("portal: resolve resources path: %w", err)
	}

	if err := chromedp.Run(tabCtx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(absResources)); err != nil {
		return "", fmt.Errorf("portal: set download directory: %w", err)
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(sub.URL)); err != nil {
		return basePath, fmt.Errorf("portal: navigate to subject %q: %w", sub.Name, err)
	}
	time.Sleep(2 * time.Second)

	if needsLogin, err := c.tabNeedsLogin(tabCtx); err != nil {
		c.logger.Warn("session check failed", "subject", sub.Name, "error", err)
	} else if needsLogin {
		c.logger.Info("session expired mid-scrape, re-authenticating", "subject", sub.Name)
		if err := c.ensureAuthenticated(tabCtx, creds); err != nil {
			return basePath, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		if err := chromedp.Run(tabCtx, chromedp.Navigate(sub.URL)); err != nil {
			return basePath, fmt.Errorf("portal: re-navigate to subject %q: %w", sub.Name, err)
		}
		time.Sleep(2 * time.Second)
	}

	var content strings.Builder
	_, _ = c.findFirstPresent(tabCtx, []string{"#toolMenu"})
	time.Sleep(2 * time.Second)

	var dashboardText string
	if err := chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools("document.body.innerText", &dashboardText)); err == nil {
		content.WriteString("--- DASHBOARD ---\n")
		content.WriteString(truncate(dashboardText, dashboardTextCharCap))
		content.WriteString("\n")
	}

	var rawLinks string
	if err := chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(toolLinksScript, &rawLinks)); err == nil {
		links := decodeToolLinks(rawLinks)
		c.scrapeAnnouncements(tabCtx, links.Announcements, &content)
		c.scrapeLessons(tabCtx, links.Lessons, &content)
		c.scrapeResources(tabCtx, links.Resources, absResources, sub.Name, &content)
		c.scrapeGuiaDocent(tabCtx, links.GuiaDocent, sub, resourcesDir, &content)
	}

	summaryPath := filepath.Join(basePath, "summary.md")
	if err := os.WriteFile(summaryPath, []byte(content.String()), 0o600); err != nil {
		return basePath, fmt.Errorf("portal: write summary for %q: %w", sub.Name, err)
	}

	return basePath, nil
}

func (c *Client) scrapeAnnouncements(tabCtx context.Context, href string, content *strings.Builder) {
	if href == "" {
		return
	}
	if err := chromedp.Run(tabCtx, chromedp.Navigate(href)); err != nil {
		return
	}
	time.Sleep(3 * time.Second)
	var text string
	_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(
		"document.querySelector('.portletBody') ? document.querySelector('.portletBody').innerText : document.body.innerText",
		&text,
	))
	content.WriteString("\n--- ANUNCIS ---\n")
	content.WriteString(text)
	content.WriteString("\n")
}

func (c *Client) scrapeLessons(tabCtx context.Context, href string, content *strings.Builder) {
	if href == "" {
		return
	}
	if err := chromedp.Run(tabCtx, chromedp.Navigate(href)); err != nil {
		return
	}
	time.Sleep(3 * time.Second)
	var text string
	_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools("document.body.innerText", &text))
	content.WriteString("\n--- LLIÇONS ---\n")
	content.WriteString(text)
	content.WriteString("\n")
}

func (c *Client) scrapeResources(tabCtx context.Context, href, downloadDir, subjectName string, content *strings.Builder) {
	if href == "" {
		return
	}
	if err := chromedp.Run(tabCtx, chromedp.Navigate(href)); err != nil {
		return
	}
	time.Sleep(3 * time.Second)

	var discard any
	_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(
		"document.getElementById('selectall') ? document.getElementById('selectall').click() : null", &discard,
	))
	time.Sleep(500 * time.Millisecond)
	_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(
		"document.getElementById('zipdownload-button') ? document.getElementById('zipdownload-button').click() : null", &discard,
	))
	time.Sleep(2 * time.Second)
	_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(
		"document.getElementById('zipDownloadButton') ? document.getElementById('zipDownloadButton').click() : null", &discard,
	))

	waitForDownloads(downloadDir, subjectName, c.logger)
	content.WriteString("\n--- RECURSOS ---\n(downloaded as zip)\n")
}

// guiaDocentContentScript extracts a teaching-guide page's body text,
// preferring the iframe Sakai typically embeds it in.
const guiaDocentContentScript = `
(function() {
	let iframe = document.querySelector('iframe');
	if (iframe && iframe.contentDocument) {
		return iframe.contentDocument.body.innerText || '';
	}
	let content = document.querySelector('.portletBody, #content, main');
	return content ? content.innerText : document.body.innerText;
})()
`

func (c *Client) scrapeGuiaDocent(tabCtx context.Context, href string, sub document.Subject, resourcesDir string, content *strings.Builder) {
	if href != "" {
		if err := chromedp.Run(tabCtx, chromedp.Navigate(href)); err == nil {
			time.Sleep(4 * time.Second)
			var text string
			_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(guiaDocentContentScript, &text))
			if text != "" {
				content.WriteString("\n--- GUIA DOCENT ---\n")
				content.WriteString(text)
				content.WriteString("\n")
			}
		}
	}

	subjectID, subjectYear := parseGuiaDocentIDs(sub.ID)
	if subjectID == "" {
		return
	}

	guiaURL := fmt.Sprintf(
		"https://www.upv.es/pls/soalu/sic_gdoc.get_content?P_ASI=%s&P_IDIOMA=c&P_VISTA=poliformat&P_TIT=&P_CACA=%s",
		subjectID, subjectYear,
	)
	if err := chromedp.Run(tabCtx, chromedp.Navigate(guiaURL)); err != nil {
		return
	}
	time.Sleep(3 * time.Second)

	var pdfData []byte
	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().Do(ctx)
		if err != nil {
			return err
		}
		pdfData = data
		return nil
	})); err == nil && len(pdfData) > 0 {
		pdfPath := filepath.Join(resourcesDir, fmt.Sprintf("%s (Guia Docent).pdf", strings.ReplaceAll(sub.Name, "/", "-")))
		if err := os.WriteFile(pdfPath, pdfData, 0o600); err != nil {
			c.logger.Warn("failed to write guia docent pdf", "subject", sub.Name, "error", err)
		}
	}

	descURL := fmt.Sprintf(
		"https://www.upv.es/pls/soalu/sic_gdoc.get_content?P_ASI=%s&P_IDIOMA=c&P_VISTA=poliformat&P_TIT=&P_CACA=%s&P_CONTENT=descripcion",
		subjectID, subjectYear,
	)
	if err := chromedp.Run(tabCtx, chromedp.Navigate(descURL)); err == nil {
		time.Sleep(2 * time.Second)
		var desc string
		_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(
			"document.querySelector('#contenido') ? document.querySelector('#contenido').innerText : document.body.innerText", &desc,
		))
		if desc != "" {
			content.WriteString("\n--- GUIA DOCENT DESCRIPTION ---\n")
			content.WriteString(desc)
			content.WriteString("\n")
		}
	}

	profURL := fmt.Sprintf(
		"https://www.upv.es/pls/soalu/sic_asi.Profesores?P_OCW=&P_ASI=%s&P_CACA=%s&P_IDIOMA=c&P_VISTA=poliformat",
		subjectID, subjectYear,
	)
	if err := chromedp.Run(tabCtx, chromedp.Navigate(profURL)); err == nil {
		time.Sleep(2 * time.Second)
		var profs string
		_ = chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(
			"document.querySelector('#contenido') ? document.querySelector('#contenido').innerText : document.body.innerText", &profs,
		))
		if profs != "" {
			content.WriteString("\n--- PROFESSORS ---\n")
			content.WriteString(profs)
			content.WriteString("\n")
		}
	}
}

// parseGuiaDocentIDs recovers the numeric subject id and academic year the
// teaching-guide endpoints expect from a subject id shaped like
// "GRA_11673_2025_DTU".
func parseGuiaDocentIDs(subjectID string) (id, year string) {
	parts := strings.Split(subjectID, "_")
	if len(parts) >= 2 {
		id = parts[1]
	}
	year = "2025"
	if len(parts) >= 3 {
		year = parts[2]
	}
	return id, year
}

func sanitizeSubjectName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, ":", "")
	return strings.TrimSpace(name)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func decodeToolLinks(raw string) toolLinks {
	var links toolLinks
	_ = json.Unmarshal([]byte(raw), &links)
	return links
}

// waitForDownloads polls downloadDir for the temp-file extensions Chromium
// and other browsers use while a download is in flight, giving up after
// downloadWaitMax regardless so a single stuck transfer never stalls sync
// indefinitely.
func waitForDownloads(downloadDir, subjectName string, logger interface{ Warn(string, ...any) }) {
	time.Sleep(downloadWaitInitial)

	deadline := time.Now().Add(downloadWaitMax)
	for {
		if time.Now().After(deadline) {
			logger.Warn("download wait timed out", "subject", subjectName)
			return
		}

		entries, err := os.ReadDir(downloadDir)
		if err != nil {
			return
		}
		incomplete := false
		for _, e := range entries {
			lower := strings.ToLower(e.Name())
			if strings.HasSuffix(lower, ".crdownload") || strings.HasSuffix(lower, ".tmp") || strings.HasSuffix(lower, ".part") {
				incomplete = true
				break
			}
		}
		if !incomplete {
			return
		}
		time.Sleep(downloadWaitPoll)
	}
}
