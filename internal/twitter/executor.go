package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// The executor issues one logical GraphQL call. It walks an ordered list of
// identifier candidates (store lookup first, then known historical ids),
// treats 404s and variable-validation errors as evidence the identifier is
// stale, and after exhausting a pass forces exactly one store refresh before
// a single retry pass. Anything else fails immediately.

type operation struct {
	fallbacks []string
	features  string
}

// Historical query ids per operation. The store result is always preferred;
// these only keep a cold start or a broken refresh limping along.
var operations = map[string]operation{
	"TweetDetail":              {fallbacks: []string{"xOhkmRac04YFZmOzU9PJHg", "B9_KmbkLhXt6jRwGjJrweg"}, features: tweetFeatures},
	"SearchTimeline":           {fallbacks: []string{"tOUz374Df84NaVVr3M1p6g"}, features: tweetFeatures},
	"UserTweets":               {fallbacks: []string{"E3opETHurmVJflFsUBVuUQ"}, features: tweetFeatures},
	"Likes":                    {fallbacks: []string{"B8I_QCljDBVfin21TTWMqA"}, features: tweetFeatures},
	"Bookmarks":                {fallbacks: []string{"qToeLeMs43Q8cr7tRYXmaQ"}, features: tweetFeatures},
	"BookmarkFolderTimeline":   {fallbacks: []string{"8HoabOvl7jl9IC1Aixj-vg"}, features: tweetFeatures},
	"ListLatestTweetsTimeline": {fallbacks: []string{"2TemLyqrMpTeAmysdbnVqw"}, features: tweetFeatures},
	"ListOwnerships":           {fallbacks: []string{"wQcOSjSQ8NtgxIwvYl1lMg"}, features: userFeatures},
	"ListMemberships":          {fallbacks: []string{"BlEXXdARdSeL_0KyKHI1Aw"}, features: userFeatures},
	"Following":                {fallbacks: []string{"OueaMJOJ0r0lmGTxl2V4Mw"}, features: userFeatures},
	"Followers":                {fallbacks: []string{"djdTXDIk2qhd4OStqlUFeQ"}, features: userFeatures},
	"UserByScreenName":         {fallbacks: []string{"G3KGOASz96M-Qu0nwmGXNg"}, features: userFeatures},
	"CreateTweet":              {fallbacks: []string{"a1p9RWpkYKBjWv_I3WzS-A", "znq7jUAqRjmPj7IszLem5Q"}, features: tweetFeatures},
	"DeleteTweet":              {fallbacks: []string{"VaenaVgh5q5ih7kvyVjgtg"}, features: tweetFeatures},
}

// OperationNames lists every registered operation, for scoped refreshes.
func OperationNames() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	return names
}

var (
	tweetFeatures = mustJSON(map[string]any{
		"responsive_web_graphql_exclude_directive_enabled":                        true,
		"verified_phone_label_enabled":                                            false,
		"creator_subscriptions_tweet_preview_api_enabled":                         true,
		"responsive_web_graphql_timeline_navigation_enabled":                      true,
		"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
		"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
		"tweetypie_unmention_optimization_enabled":                                true,
		"responsive_web_edit_tweet_api_enabled":                                   true,
		"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
		"view_counts_everywhere_api_enabled":                                      true,
		"longform_notetweets_consumption_enabled":                                 true,
		"responsive_web_twitter_article_tweet_consumption_enabled":                true,
		"tweet_awards_web_tipping_enabled":                                        false,
		"freedom_of_speech_not_reach_fetch_enabled":                               true,
		"standardized_nudges_misinfo":                                             true,
		"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
		"longform_notetweets_rich_text_read_enabled":                              true,
		"longform_notetweets_inline_media_enabled":                                true,
		"responsive_web_media_download_video_enabled":                             false,
		"responsive_web_enhance_cards_enabled":                                    false,
	})

	userFeatures = mustJSON(map[string]any{
		"responsive_web_graphql_exclude_directive_enabled":                  true,
		"verified_phone_label_enabled":                                      false,
		"creator_subscriptions_tweet_preview_api_enabled":                   true,
		"responsive_web_graphql_timeline_navigation_enabled":                true,
		"responsive_web_graphql_skip_user_profile_image_extensions_enabled": false,
		"responsive_web_home_pinned_timelines_enabled":                      true,
		"hidden_profile_likes_enabled":                                      true,
		"subscriptions_verification_info_verified_since_enabled":            true,
		"highlights_tweets_tab_ui_enabled":                                  true,
	})
)

func mustJSON(v any) string {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(bz)
}

// callGET issues a read operation: variables and features serialized into
// query parameters, per the public web client's wire shape.
func (c *Client) callGET(ctx context.Context, opName string, variables map[string]any) ([]byte, error) {
	op, ok := operations[opName]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", opName)
	}
	variablesBz, err := json.Marshal(variables)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, opName, func(queryID string) (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet,
			fmt.Sprintf("%s/i/api/graphql/%s/%s", c.opts.APIBase, queryID, opName), nil)
		if err != nil {
			return nil, err
		}
		values := req.URL.Query()
		values.Set("variables", string(variablesBz))
		values.Set("features", op.features)
		req.URL.RawQuery = values.Encode()
		return req, nil
	})
}

// callPOST issues a write operation: JSON body carrying variables, features,
// and the candidate queryId.
func (c *Client) callPOST(ctx context.Context, opName string, variables map[string]any) ([]byte, error) {
	op, ok := operations[opName]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", opName)
	}
	var features map[string]any
	if err := json.Unmarshal([]byte(op.features), &features); err != nil {
		return nil, err
	}
	return c.execute(ctx, opName, func(queryID string) (*http.Request, error) {
		bodyBz, err := json.Marshal(map[string]any{
			"variables": variables,
			"features":  features,
			"queryId":   queryID,
		})
		if err != nil {
			return nil, err
		}
		return c.newRequest(ctx, http.MethodPost,
			fmt.Sprintf("%s/i/api/graphql/%s/%s", c.opts.APIBase, queryID, opName), bytes.NewReader(bodyBz))
	})
}

// candidates is the ordered identifier list for one pass: the store's current
// id first, then the historical fallbacks, deduplicated.
func (c *Client) candidates(opName string, op operation) []string {
	out := make([]string, 0, len(op.fallbacks)+1)
	seen := make(map[string]bool, len(op.fallbacks)+1)
	if c.store != nil {
		if id, ok := c.store.Lookup(opName); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range op.fallbacks {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (c *Client) execute(ctx context.Context, opName string, build func(queryID string) (*http.Request, error)) ([]byte, error) {
	op := operations[opName]

	for pass := 0; pass < 2; pass++ {
		var lastTransient error
		for _, queryID := range c.candidates(opName, op) {
			req, err := build(queryID)
			if err != nil {
				return nil, err
			}
			body, transient, err := c.attempt(req)
			if err == nil {
				return body, nil
			}
			if !transient {
				return nil, err
			}
			lastTransient = err
		}

		if pass == 1 {
			return nil, wrapError(ErrIdentifierStale, lastTransient,
				"all identifiers rejected for %s", opName)
		}

		// Exactly one forced refresh per logical call. Scoped to every
		// registered operation so the rewritten snapshot stays complete.
		if c.store != nil {
			if _, err := c.store.Refresh(ctx, OperationNames(), true); err != nil {
				log.Printf("[WARN] query id refresh failed: %s", err)
			}
		}
	}
	// Unreachable: pass 1 always returns.
	return nil, newError(ErrIdentifierStale, "all identifiers rejected for %s", opName)
}

// attempt runs one candidate. The transient flag marks "identifier invalid"
// signals: HTTP 404, or a GraphQL validation error citing a missing required
// variable. Transport failures (including timeouts) are generic failures and
// never transient, so they cannot trigger a refresh.
func (c *Client) attempt(req *http.Request) (body []byte, transient bool, err error) {
	status, header, body, err := c.do(req)
	if err != nil {
		return nil, false, wrapError(ErrUpstream, err, "request failed")
	}

	switch {
	case status == http.StatusOK:
		// fallthrough to payload inspection below
	case status == http.StatusNotFound:
		return nil, true, &StatusError{StatusCode: status, Body: string(body)}
	case status == http.StatusTooManyRequests:
		return nil, false, &RateLimitError{RetryAfter: retryAfterDelay(header)}
	default:
		return nil, false, &StatusError{StatusCode: status, Body: string(body)}
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, wrapError(ErrUpstream, err, "malformed response payload")
	}
	if len(envelope.Errors) == 0 {
		return body, false, nil
	}
	if isMissingVariableError(envelope.Errors) {
		return nil, true, newError(ErrIdentifierStale, "server rejected variables: %s", joinAPIErrors(envelope.Errors))
	}
	if hasErrorCode(envelope.Errors, codeAutomatedRequest) {
		return nil, false, newError(ErrAutomatedRejection, "request flagged as automated: %s", joinAPIErrors(envelope.Errors))
	}
	return nil, false, newError(ErrUpstream, "server returned error: %s", joinAPIErrors(envelope.Errors))
}

// isMissingVariableError detects validation failures tied to a required query
// variable, the GraphQL-level spelling of "this query id is not the one you
// think it is".
func isMissingVariableError(errs []APIError) bool {
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		if !strings.Contains(msg, "variable") {
			continue
		}
		if strings.Contains(msg, "was not provided") ||
			strings.Contains(msg, "undefined") ||
			strings.Contains(msg, "of required type") {
			return true
		}
	}
	return false
}

// retryAfterDelay reads a Retry-After delta-seconds header, when present.
func retryAfterDelay(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// restGET fetches a REST-shaped (non-GraphQL) endpoint on the API host and
// decodes into out. Used by the current-user fallback chain.
func (c *Client) restGET(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.opts.APIBase+path, nil)
	if err != nil {
		return err
	}
	status, _, body, err := c.do(req)
	if err != nil {
		return wrapError(ErrUpstream, err, "request failed")
	}
	if status != http.StatusOK {
		return &StatusError{StatusCode: status, Body: string(body)}
	}
	return json.Unmarshal(body, out)
}
