package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

const (
	defaultAPIBase    = "https://x.com"
	defaultUploadBase = "https://upload.twitter.com"

	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/104.0.0.0 Safari/537.36"

	// Static bearer carried by the public web client; not a secret.
	defaultBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

	defaultPageSize   = 20
	defaultTimeout    = 30 * time.Second
	defaultQuoteDepth = 1

	// Delay between pages on endpoints known to be unusually rate-sensitive.
	slowPageDelay = time.Second
)

// Options tunes a Client. Zero values take defaults.
type Options struct {
	APIBase    string
	UploadBase string
	Timeout    time.Duration
	PageSize   int
	QuoteDepth int
	IncludeRaw bool
}

func (o Options) withDefaults() Options {
	if o.APIBase == "" {
		o.APIBase = defaultAPIBase
	}
	if o.UploadBase == "" {
		o.UploadBase = defaultUploadBase
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	// Zero takes the default; a negative value disables quote embedding.
	if o.QuoteDepth == 0 {
		o.QuoteDepth = defaultQuoteDepth
	} else if o.QuoteDepth < 0 {
		o.QuoteDepth = 0
	}
	return o
}

// Client is the composed dependency struct every operation runs against: one
// HTTP primitive, one query-id store, and resolved options. Construct once
// and share; all methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	store      *Store
	opts       Options

	authToken string
	ct0       string

	meMu sync.Mutex
	me   *User
}

// NewClient builds a client from a browser session cookie pair. Both tokens
// are required; missing credentials are a constructor error, the one failure
// mode that is not returned as an operation result.
func NewClient(authToken, ct0 string, store *Store, opts Options) (*Client, error) {
	if authToken == "" || ct0 == "" {
		return nil, newError(ErrMissingCredentials, "both auth_token and ct0 are required")
	}
	opts = opts.withDefaults()

	base, err := url.Parse(opts.APIBase)
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", opts.APIBase, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(base, []*http.Cookie{
		{Name: "auth_token", Value: authToken, Path: "/"},
		{Name: "ct0", Value: ct0, Path: "/"},
	})

	return &Client{
		httpClient: &http.Client{Jar: jar},
		store:      store,
		opts:       opts,
		authToken:  authToken,
		ct0:        ct0,
	}, nil
}

// Store exposes the identifier store, mainly so callers can inspect snapshot
// freshness for diagnostics.
func (c *Client) Store() *Store { return c.store }

// newRequest builds a request against the API host with the full auth header
// set: static bearer, ct0 mirrored into the CSRF header, browser user-agent.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", defaultBearerToken))
	req.Header.Set("X-Twitter-Active-User", "yes")
	req.Header.Set("X-Twitter-Auth-Type", "OAuth2Session")
	req.Header.Set("X-Csrf-Token", c.ct0)
	return req, nil
}

// do runs one HTTP round trip under the configured per-call timeout and
// drains the body. The response body is returned decoded-from-wire but
// otherwise untouched.
func (c *Client) do(req *http.Request) (int, http.Header, []byte, error) {
	ctx, cancel := context.WithTimeout(req.Context(), c.opts.Timeout)
	defer cancel()

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}
