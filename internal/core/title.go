package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrBlockedURL is returned when a probe target resolves to a loopback,
// private or otherwise internal address.
var ErrBlockedURL = errors.New("blocked internal URL")

// AllowInternalURLsForTesting disables the internal address check so tests
// can probe httptest servers on localhost.
var AllowInternalURLsForTesting = false

// FetchTitle downloads the page at rawURL and returns its display title.
// The <title> element wins; og:title is used when the document has none.
// An empty string with a nil error means the page had no usable title.
func FetchTitle(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateBookmarkURL(rawURL); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTitleTimeout)
	defer cancel()

	body, err := fetchPage(ctx, http.DefaultClient, rawURL, MaxTitlePageSize)
	if err != nil {
		return "", err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			title = strings.TrimSpace(og)
		}
	}
	title = strings.Join(strings.Fields(title), " ")
	if len(title) > MaxTitleLength {
		title = title[:MaxTitleLength]
	}
	return title, nil
}

// fetchPage issues a GET and returns a size-limited body. The caller closes it.
func fetchPage(ctx context.Context, client *http.Client, urlStr string, maxSize int64) (io.ReadCloser, error) {
	if isInternalURL(urlStr) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedURL, urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return limitedBody{Reader: io.LimitReader(resp.Body, maxSize), Closer: resp.Body}, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// isInternalURL reports whether a URL points at a host that must not be
// fetched on a user's behalf.
func isInternalURL(urlStr string) bool {
	if AllowInternalURLsForTesting {
		return false
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".internal") || strings.HasSuffix(host, ".local") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
