package portal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// browserCookie is the subset of a CDP cookie this package cares about.
type browserCookie struct {
	Name   string
	Value  string
	Domain string
}

// harvestCookies reads every cookie the browser currently holds for tabCtx's
// page via the CDP Network domain.
func harvestCookies(tabCtx context.Context) ([]browserCookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetAllCookies().Do(ctx)
		if err != nil {
			return err
		}
		raw = cookies
		return nil
	}))
	if err != nil {
		return nil, err
	}

	out := make([]browserCookie, len(raw))
	for i, c := range raw {
		out[i] = browserCookie{Name: c.Name, Value: c.Value, Domain: c.Domain}
	}
	return out, nil
}

func httpURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("portal: parse url %q: %w", raw, err)
	}
	return u, nil
}
