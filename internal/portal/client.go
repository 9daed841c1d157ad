package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/0xbiel/polirag/internal/logging"
)

// ErrLoginFailed is returned when credentials are rejected or the
// post-submit authenticated-session poll times out.
var ErrLoginFailed = errors.New("portal: login failed")

// ErrSessionExpired is returned by operations that detect an expired
// session mid-scrape, so callers can trigger in-tab re-authentication.
var ErrSessionExpired = errors.New("portal: session expired")

const (
	loginInputPollInterval = 500 * time.Millisecond
	loginInputPollTimeout  = 15 * time.Second
	loginSuccessPollTimeout = 20 * time.Second

	// cookieBaseDomain is the eTLD+1 every session cookie must fall within
	// to be imported into the HTTP cookie jar. The portal this client
	// targets (poliformat.upv.es) lives entirely under upv.es.
	cookieBaseDomain = "upv.es"
)

// loginURL, rootURL are the two portal entry points the auth flow and
// connection check respectively navigate to.
const (
	loginURL = "https://poliformat.upv.es/portal/login"
	rootURL  = "https://poliformat.upv.es/portal"
)

// usernameSelectors and passwordSelectors are tried in order: the portal has
// shipped several login form variants (DNI-only PoliformaT style, CAS-style
// "username", and a generic "#username" id) over the years.
var usernameSelectors = []string{
	"input[name='dni']",
	"input[name='username']",
	"#username",
}

var passwordSelectors = []string{
	"input[name='clau']",
	"input[name='password']",
	"#password",
}

var submitSelectors = []string{
	"input[type='submit']",
	"button[type='submit']",
	".btn-submit",
	"button[name='submit']",
}

// authenticatedElementSelectors are page elements present only once a
// portal session is live; any one of them appearing, or a success URL
// pattern, ends the post-submit poll.
var authenticatedElementSelectors = []string{
	"#toolMenu",
	".Mrphs-toolsNav",
	".sakai-sitesAndToolsNav",
	"#siteNav",
	".portal-neochat",
	"#portal",
	".Mrphs-sites",
}

// Client is a session-managed HTTP + browser automation client for the
// portal. A single Client is used for the lifetime of one sync: the browser
// launches once and every subject's deep-scrape reuses it via its own tab,
// since the browser's download-behavior configuration is global and would
// be corrupted by concurrent tabs downloading to different directories.
type Client struct {
	mu    sync.Mutex
	state State

	httpClient *http.Client
	jar        *cookiejar.Jar

	allocCtx   context.Context
	allocCancel context.CancelFunc
	browserCtx context.Context
	browserCancel context.CancelFunc

	logger *slog.Logger
}

// NewClient launches a headless browser instance and an HTTP client sharing
// a cookie jar. Close must be called to release the browser process.
func NewClient(ctx context.Context) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("portal: create cookie jar: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.WindowSize(1280, 800),
	)...)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("portal: launch headless browser: %w", err)
	}

	return &Client{
		state:         StateUnauthenticated,
		httpClient:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
		jar:           jar,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logging.Named("portal"),
	}, nil
}

// Close releases the browser process and its allocator.
func (c *Client) Close() {
	c.browserCancel()
	c.allocCancel()
}

// State returns the client's current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// newTab opens a new logical browser tab sharing the Client's browser
// process, returning a context whose cancellation closes only that tab.
func (c *Client) newTab() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(c.browserCtx)
}

// CheckConnection reports whether the current session is authenticated by
// GETting the portal root and inspecting the final response URL: a
// redirect to a login/gateway path means the session is expired or absent.
func (c *Client) CheckConnection(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rootURL, nil)
	if err != nil {
		return false, fmt.Errorf("portal: build connection check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("portal: connection check: %w", err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if isLoginURL(finalURL) {
		return false, nil
	}
	return true, nil
}

func isLoginURL(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range []string{"login", "est_aute", "gateway"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// importCookiesFromBrowser harvests every cookie visible to tabCtx whose
// domain falls within cookieBaseDomain and imports it into the HTTP cookie
// jar so subsequent net/http calls carry the authenticated session.
func (c *Client) importCookiesFromBrowser(tabCtx context.Context) error {
	cookies, err := harvestCookies(tabCtx)
	if err != nil {
		return fmt.Errorf("portal: harvest cookies: %w", err)
	}

	base, err := httpURL(rootURL)
	if err != nil {
		return err
	}

	var httpCookies []*http.Cookie
	for _, ck := range cookies {
		if !strings.HasSuffix(ck.Domain, cookieBaseDomain) {
			continue
		}
		httpCookies = append(httpCookies, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	if len(httpCookies) == 0 {
		return fmt.Errorf("portal: no session cookies found after login")
	}

	c.jar.SetCookies(base, httpCookies)
	return nil
}
