package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Discover fetches the listing page and returns every link whose target
// contains year and ends with the configured extension, in page order.
// Root-relative links are resolved against the base origin. Duplicates are
// kept.
func (f *Fetcher) Discover(ctx context.Context, year int) ([]string, error) {
	f.logger.Info("fetching data links", "url", f.listingURL, "year", year)

	req, err := http.NewRequestWithContext(ctx, "GET", f.listingURL, nil)
	if err != nil {
		return nil, &DiscoveryError{URL: f.listingURL, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DiscoveryError{URL: f.listingURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DiscoveryError{
			URL: f.listingURL,
			Err: &HTTPError{URL: f.listingURL, StatusCode: resp.StatusCode},
		}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, &DiscoveryError{URL: f.listingURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	base, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, &DiscoveryError{URL: f.listingURL, Err: fmt.Errorf("parse base url: %w", err)}
	}

	links := filterLinks(anchorHrefs(doc), strconv.Itoa(year), f.ext, base)
	f.logger.Info("found data files", "count", len(links), "year", year)
	return links, nil
}

// anchorHrefs collects the href of every <a> element in document order.
func anchorHrefs(n *html.Node) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return hrefs
}

func filterLinks(hrefs []string, year, ext string, base *url.URL) []string {
	var out []string
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if !strings.Contains(href, year) || !strings.HasSuffix(href, ext) {
			continue
		}
		if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			href = base.ResolveReference(ref).String()
		}
		out = append(out, href)
	}
	return out
}
