package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Login drives the headless browser through the portal's login form and, on
// success, harvests the resulting session cookies into the HTTP client.
// Transitions Unauthenticated -> Authenticating -> Authenticated, or back to
// Unauthenticated (wrapping ErrLoginFailed) on failure.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	c.setState(StateAuthenticating)

	tabCtx, cancel := c.newTab()
	defer cancel()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(loginURL)); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: navigate to login page: %v", ErrLoginFailed, err)
	}

	userSel, err := c.pollForAnySelector(tabCtx, usernameSelectors, loginInputPollTimeout)
	if err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	if err := chromedp.Run(tabCtx,
		chromedp.SendKeys(userSel, creds.Username, chromedp.ByQuery),
	); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: type username: %v", ErrLoginFailed, err)
	}

	passSel, err := c.findFirstPresent(tabCtx, passwordSelectors)
	if err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: no password field found: %v", ErrLoginFailed, err)
	}
	if err := chromedp.Run(tabCtx,
		chromedp.SendKeys(passSel, creds.Pin, chromedp.ByQuery),
	); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: type pin: %v", ErrLoginFailed, err)
	}

	submitSel, err := c.findFirstPresent(tabCtx, submitSelectors)
	if err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: no submit control found: %v", ErrLoginFailed, err)
	}
	if err := chromedp.Run(tabCtx, chromedp.Click(submitSel, chromedp.ByQuery)); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: submit login form: %v", ErrLoginFailed, err)
	}

	if err := c.pollForAuthenticatedSession(tabCtx, loginSuccessPollTimeout); err != nil {
		c.setState(StateUnauthenticated)
		return err
	}

	if err := c.importCookiesFromBrowser(tabCtx); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	c.setState(StateAuthenticated)
	return nil
}

// pollForAnySelector polls every 500ms, up to timeout, for the first of
// selectors to appear in the page, returning it. This probes across login
// form variants rather than committing to one.
func (c *Client) pollForAnySelector(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if sel, err := c.findFirstPresent(ctx, selectors); err == nil {
			return sel, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("timed out after %s waiting for any of %v", timeout, selectors)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(loginInputPollInterval):
		}
	}
}

// findFirstPresent returns the first selector in order whose element exists
// in the current page, without waiting.
func (c *Client) findFirstPresent(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		var nodes int
		err := chromedp.Run(ctx, chromedp.EvaluateAsDevTools(
			fmt.Sprintf("document.querySelectorAll(%q).length", sel), &nodes,
		))
		if err == nil && nodes > 0 {
			return sel, nil
		}
	}
	return "", fmt.Errorf("none of %v present", selectors)
}

// pollForAuthenticatedSession polls up to timeout for either a success URL
// pattern or a known authenticated-portal element.
func (c *Client) pollForAuthenticatedSession(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var currentURL string
		if err := chromedp.Run(ctx, chromedp.Location(&currentURL)); err == nil && isSuccessURL(currentURL) {
			return nil
		}
		if _, err := c.findFirstPresent(ctx, authenticatedElementSelectors); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no authenticated session detected after %s", ErrLoginFailed, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(loginInputPollInterval):
		}
	}
}

func isSuccessURL(u string) bool {
	return !isLoginURL(u) && (contains(u, "/portal/site/") || contains(u, "/portal/pda/"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
