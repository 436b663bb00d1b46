package twitter

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Bundle discovery: the upstream rotates query ids without notice, but ships
// them inside its public web bundles. Discovery fetches a few entry pages,
// extracts bundle script URLs, and pattern-matches name/id pairs out of the
// obfuscated bundle text. This is best-effort scraping over garbage-prone
// input; only a total failure to locate any bundle aborts a refresh.

var defaultEntryPages = []string{
	"https://x.com/home",
	"https://x.com/explore",
	"https://x.com/i/bookmarks",
}

const defaultBundleConcurrency = 6

// defaultDiscoveryTimeout bounds each page and bundle fetch so a hung
// download cannot stall a refresh, which singleflight shares across
// every concurrent caller.
const defaultDiscoveryTimeout = 30 * time.Second

var (
	// Bundle URLs are keyed on the client-web path segment rather than the
	// CDN host, which has changed before.
	reBundleURL = regexp.MustCompile(`https?://[^\s"'<>]+/client-web(?:-legacy)?/[^\s"'<>]+\.js`)

	reIDFirst   = regexp.MustCompile(`queryId\s*:\s*"([A-Za-z0-9_-]+)"\s*,\s*operationName\s*:\s*"([A-Za-z0-9_]+)"`)
	reNameFirst = regexp.MustCompile(`operationName\s*:\s*"([A-Za-z0-9_]+)"\s*,\s*queryId\s*:\s*"([A-Za-z0-9_-]+)"`)
	reNearbyID  = regexp.MustCompile(`queryId\s*[:=]\s*"([A-Za-z0-9_-]+)"`)
)

// proximityWindow bounds how far from an operation-name literal the fallback
// matcher will look for a query id.
const proximityWindow = 220

// Discoverer fetches entry pages and bundles over the supplied HTTP client.
type Discoverer struct {
	httpClient  *http.Client
	pages       []string
	concurrency int
}

// NewDiscoverer builds a discoverer. With no pages given, the default public
// entry pages are used; with no client given, one with a bounded per-fetch
// timeout is used.
func NewDiscoverer(httpClient *http.Client, pages ...string) *Discoverer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultDiscoveryTimeout}
	}
	if len(pages) == 0 {
		pages = defaultEntryPages
	}
	return &Discoverer{
		httpClient:  httpClient,
		pages:       pages,
		concurrency: defaultBundleConcurrency,
	}
}

// Discover resolves query ids for the requested operation names. Individual
// page and bundle failures are tolerated; finding zero bundles across every
// page is the only unrecoverable outcome.
func (d *Discoverer) Discover(ctx context.Context, names []string) (map[string]string, DiscoverySources, error) {
	sources := DiscoverySources{Pages: append([]string(nil), d.pages...)}

	var html []byte
	for _, page := range d.pages {
		body, err := d.fetch(ctx, page)
		if err != nil {
			log.Printf("[WARN] discovery skipping page %s: %s", page, err)
			continue
		}
		html = append(html, body...)
		html = append(html, '\n')
	}

	bundles := dedupeStrings(reBundleURL.FindAllString(string(html), -1))
	if len(bundles) == 0 {
		return nil, sources, fmt.Errorf("no script bundles found across %d pages", len(d.pages))
	}
	sources.Bundles = bundles

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var (
		mu    sync.Mutex
		found = make(map[string]string, len(names))
		wg    sync.WaitGroup
		sem   = make(chan struct{}, d.concurrency)
	)

	allResolved := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(found) == len(wanted)
	}

	for _, bundle := range bundles {
		if allResolved() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()
			if allResolved() {
				return
			}
			body, err := d.fetch(ctx, url)
			if err != nil {
				log.Printf("[WARN] discovery skipping bundle %s: %s", url, err)
				return
			}
			pairs := extractQueryIDs(string(body), wanted)
			mu.Lock()
			for name, id := range pairs {
				if _, ok := found[name]; !ok {
					found[name] = id
				}
			}
			mu.Unlock()
		}(bundle)
	}
	wg.Wait()

	return found, sources, nil
}

func (d *Discoverer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// extractQueryIDs applies the ordered matchers to one bundle body. The first
// match wins per operation name; identifiers failing the strict character
// class are rejected by the regexes themselves.
func extractQueryIDs(body string, wanted map[string]bool) map[string]string {
	found := make(map[string]string)

	for _, m := range reIDFirst.FindAllStringSubmatch(body, -1) {
		id, name := m[1], m[2]
		if wanted[name] {
			if _, ok := found[name]; !ok {
				found[name] = id
			}
		}
	}
	for _, m := range reNameFirst.FindAllStringSubmatch(body, -1) {
		name, id := m[1], m[2]
		if wanted[name] {
			if _, ok := found[name]; !ok {
				found[name] = id
			}
		}
	}

	// Permissive fallback: a query id assignment within a short window of
	// the quoted operation name. Obfuscation sometimes reorders or splits
	// the object literal the strict matchers expect.
	for name := range wanted {
		if _, ok := found[name]; ok {
			continue
		}
		idx := strings.Index(body, `"`+name+`"`)
		if idx < 0 {
			continue
		}
		lo := idx - proximityWindow
		if lo < 0 {
			lo = 0
		}
		hi := idx + len(name) + proximityWindow
		if hi > len(body) {
			hi = len(body)
		}
		if m := reNearbyID.FindStringSubmatch(body[lo:hi]); m != nil {
			found[name] = m[1]
		}
	}

	return found
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
