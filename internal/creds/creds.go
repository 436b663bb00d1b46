// Package creds resolves the browser session cookie pair the client
// authenticates with. Credentials come from the environment, either as the
// two discrete tokens or as a raw Cookie header pasted from a browser.
package creds

import (
	"fmt"
	"net/http"
	"os"
)

// Environment variables consulted, most specific first.
const (
	EnvAuthToken = "BIRD_AUTH_TOKEN"
	EnvCT0       = "BIRD_CT0"
	EnvCookies   = "BIRD_COOKIES"

	// Aliases honored for compatibility with other tooling.
	EnvAltAuthToken = "TWITTER_AUTH_TOKEN"
	EnvAltCT0       = "TWITTER_CT0"
	EnvAltCookies   = "TWITTER_COOKIES"
)

// Credentials is a resolved session cookie pair.
type Credentials struct {
	AuthToken string
	CT0       string
	Source    string
}

// Resolve locates credentials. Discrete token variables win over a raw
// cookie header; the primary names win over the aliases. Warnings flag
// partially-set sources that were skipped.
func Resolve() (*Credentials, []string, error) {
	var warnings []string

	pairs := []struct {
		authKey, ct0Key string
	}{
		{EnvAuthToken, EnvCT0},
		{EnvAltAuthToken, EnvAltCT0},
	}
	for _, p := range pairs {
		auth, ct0 := os.Getenv(p.authKey), os.Getenv(p.ct0Key)
		if auth != "" && ct0 != "" {
			return &Credentials{AuthToken: auth, CT0: ct0, Source: p.authKey}, warnings, nil
		}
		if auth != "" || ct0 != "" {
			warnings = append(warnings,
				fmt.Sprintf("both %s and %s must be set; ignoring partial pair", p.authKey, p.ct0Key))
		}
	}

	for _, key := range []string{EnvCookies, EnvAltCookies} {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		creds, err := FromRawCookies(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %s", key, err))
			continue
		}
		creds.Source = key
		return creds, warnings, nil
	}

	return nil, warnings, fmt.Errorf(
		"no credentials found: set %s and %s, or %s to a raw Cookie header", EnvAuthToken, EnvCT0, EnvCookies)
}

// FromRawCookies extracts the session pair from a raw Cookie header value.
func FromRawCookies(raw string) (*Credentials, error) {
	header := http.Header{}
	header.Add("Cookie", raw)
	req := http.Request{Header: header}

	creds := &Credentials{}
	for _, c := range req.Cookies() {
		switch c.Name {
		case "auth_token":
			creds.AuthToken = c.Value
		case "ct0":
			creds.CT0 = c.Value
		}
	}
	if creds.AuthToken == "" || creds.CT0 == "" {
		return nil, fmt.Errorf("cookie header is missing auth_token or ct0")
	}
	return creds, nil
}
