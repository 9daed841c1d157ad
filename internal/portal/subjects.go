package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/0xbiel/polirag/internal/document"
)

// subjectLinksScript collects every distinct subject-site link the current
// page exposes, filtering out tool sub-pages, gateway links, and the
// language/home switcher entries that share the same markup.
const subjectLinksScript = `
(function() {
	let subjects = [];
	let links = Array.from(document.querySelectorAll('a[href*="/portal/site/"]:not([href*="!gateway"])'));
	let seen = new Set();
	links.forEach(a => {
		let href = a.href;
		if (!href || seen.has(href) || href.includes("/tool/") || href.includes("~")) return;
		let text = (a.innerText || a.title || "").trim();
		if (!text || ["Home", "Inici", "Castellano", "English", "Valencià"].includes(text)) return;
		seen.add(href);
		subjects.push({ id: href, name: text, url: href });
	});
	return JSON.stringify(subjects);
})()
`

// ListSubjects enumerates every subject (course site) visible on the
// portal's dashboard, re-authenticating first if the session has expired.
// Results are sorted by name and deduplicated by id.
func (c *Client) ListSubjects(ctx context.Context, creds Credentials) ([]document.Subject, error) {
	tabCtx, cancel := c.newTab()
	defer cancel()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(rootURL)); err != nil {
		return nil, fmt.Errorf("portal: navigate to dashboard: %w", err)
	}
	time.Sleep(2 * time.Second)

	if err := c.ensureAuthenticated(tabCtx, creds); err != nil {
		return nil, err
	}

	// "View all sites" reveals subjects otherwise hidden behind pagination.
	if sel, err := c.findFirstPresent(tabCtx, []string{"#sakai-view-all-sites"}); err == nil {
		_ = chromedp.Run(tabCtx, chromedp.Click(sel, chromedp.ByQuery))
		time.Sleep(4 * time.Second)
	}

	var raw string
	if err := chromedp.Run(tabCtx, chromedp.EvaluateAsDevTools(subjectLinksScript, &raw)); err != nil {
		return nil, fmt.Errorf("portal: extract subject links: %w", err)
	}

	var subjects []document.Subject
	if err := json.Unmarshal([]byte(raw), &subjects); err != nil {
		return nil, fmt.Errorf("portal: decode subject list: %w", err)
	}

	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	subjects = dedupeSubjects(subjects)
	return subjects, nil
}

func dedupeSubjects(in []document.Subject) []document.Subject {
	seen := make(map[string]bool, len(in))
	out := make([]document.Subject, 0, len(in))
	for _, s := range in {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// ensureAuthenticated checks the current tab for login markers and, if
// found, drives it through the same form-fill flow as Login without
// opening a new tab, then returns to the page tabCtx was on.
func (c *Client) ensureAuthenticated(tabCtx context.Context, creds Credentials) error {
	loggedOut, err := c.tabNeedsLogin(tabCtx)
	if err != nil {
		return err
	}
	if !loggedOut {
		return nil
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("%w: navigate to login page: %v", ErrLoginFailed, err)
	}
	time.Sleep(1 * time.Second)

	userSel, err := c.pollForAnySelector(tabCtx, usernameSelectors, loginInputPollTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := chromedp.Run(tabCtx, chromedp.SendKeys(userSel, creds.Username, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: type username: %v", ErrLoginFailed, err)
	}

	passSel, err := c.findFirstPresent(tabCtx, passwordSelectors)
	if err != nil {
		return fmt.Errorf("%w: no password field found: %v", ErrLoginFailed, err)
	}
	if err := chromedp.Run(tabCtx, chromedp.SendKeys(passSel, creds.Pin, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: type pin: %v", ErrLoginFailed, err)
	}

	submitSel, err := c.findFirstPresent(tabCtx, submitSelectors)
	if err != nil {
		return fmt.Errorf("%w: no submit control found: %v", ErrLoginFailed, err)
	}
	if err := chromedp.Run(tabCtx, chromedp.Click(submitSel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: submit login form: %v", ErrLoginFailed, err)
	}

	if err := c.pollForAuthenticatedSession(tabCtx, loginSuccessPollTimeout); err != nil {
		return err
	}
	return c.importCookiesFromBrowser(tabCtx)
}

// tabNeedsLogin inspects the current page's URL and body text for the
// portal's various "please identify yourself" markers.
func (c *Client) tabNeedsLogin(tabCtx context.Context) (bool, error) {
	var currentURL, bodyText string
	err := chromedp.Run(tabCtx,
		chromedp.Location(&currentURL),
		chromedp.EvaluateAsDevTools("document.body.innerText", &bodyText),
	)
	if err != nil {
		return false, fmt.Errorf("portal: inspect session state: %w", err)
	}

	if isLoginURL(currentURL) {
		return true, nil
	}
	for _, marker := range []string{"Identificación obligatoria", "Identificarse"} {
		if contains(bodyText, marker) {
			return true, nil
		}
	}
	return false, nil
}
