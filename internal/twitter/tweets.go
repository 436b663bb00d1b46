package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// PaginationOptions tunes a paginated read. Zero values take defaults: one
// client page size of items, starting from the top, no page cap. All
// overrides Count and walks the stream to exhaustion.
type PaginationOptions struct {
	Count    int
	All      bool
	Cursor   string
	MaxPages int
}

// target maps the option pair onto the engine's convention, where a
// negative target means unlimited.
func (p PaginationOptions) target() int {
	if p.All {
		return -1
	}
	return p.Count
}

func (c *Client) normOpts() normalizeOptions {
	return normalizeOptions{quoteDepth: c.opts.QuoteDepth, includeRaw: c.opts.IncludeRaw}
}

func (c *Client) tweetPaginateOpts(p PaginationOptions, delay bool) paginateOptions {
	opts := paginateOptions{
		Target:   p.target(),
		Cursor:   p.Cursor,
		MaxPages: p.MaxPages,
		PageSize: c.opts.PageSize,
	}
	if delay {
		opts.Delay = slowPageDelay
	}
	return opts
}

func tweetKey(t Tweet) string { return t.ID }
func userKey(u User) string   { return u.ID }
func listKey(l List) string   { return l.ID }

// fetchDetail runs one TweetDetail call and flattens the conversation.
func (c *Client) fetchDetail(ctx context.Context, tweetID, cursor string) ([]Tweet, string, error) {
	variables := map[string]any{
		"focalTweetId":                           tweetID,
		"with_rux_injections":                    false,
		"includePromotedContent":                 false,
		"withCommunity":                          true,
		"withQuickPromoteEligibilityTweetFields": false,
		"withBirdwatchNotes":                     false,
		"withVoice":                              true,
		"withV2Timeline":                         true,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}
	body, err := c.callGET(ctx, "TweetDetail", variables)
	if err != nil {
		return nil, "", err
	}
	var resp TweetDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", wrapError(ErrUpstream, err, "malformed tweet detail payload")
	}
	tweets, next := normalizeTweets(resp.Data.ThreadedConversation.Instructions, c.normOpts())
	return tweets, next, nil
}

// GetTweet fetches a single tweet by id.
func (c *Client) GetTweet(ctx context.Context, tweetID string) (*Tweet, error) {
	tweets, _, err := c.fetchDetail(ctx, tweetID, "")
	if err != nil {
		return nil, err
	}
	for i := range tweets {
		if tweets[i].ID == tweetID {
			return &tweets[i], nil
		}
	}
	return nil, newError(ErrNotFound, "tweet %s not found", tweetID)
}

// GetConversation fetches a tweet and its surrounding conversation page:
// ancestors, the focal tweet, and replies, in timeline order.
func (c *Client) GetConversation(ctx context.Context, tweetID string, p PaginationOptions) (*TweetPage, error) {
	result, err := paginate(ctx, c.tweetPaginateOpts(p, false), tweetKey,
		func(ctx context.Context, count int, cursor string) (Page[Tweet], error) {
			tweets, next, err := c.fetchDetail(ctx, tweetID, cursor)
			if err != nil {
				return Page[Tweet]{}, err
			}
			return Page[Tweet]{Items: tweets, NextCursor: next}, nil
		})
	if err != nil {
		return nil, err
	}
	return &TweetPage{Tweets: result.Items, NextCursor: result.NextCursor}, nil
}

// GetReplies fetches direct replies to a tweet.
func (c *Client) GetReplies(ctx context.Context, tweetID string, p PaginationOptions) (*TweetPage, error) {
	page, err := c.GetConversation(ctx, tweetID, p)
	if err != nil {
		return nil, err
	}
	replies := make([]Tweet, 0, len(page.Tweets))
	for _, t := range page.Tweets {
		if t.InReplyToStatusID == tweetID {
			replies = append(replies, t)
		}
	}
	return &TweetPage{Tweets: replies, NextCursor: page.NextCursor}, nil
}

// GetThread fetches the thread a tweet belongs to: every tweet sharing its
// conversation, oldest first.
func (c *Client) GetThread(ctx context.Context, tweetID string, p PaginationOptions) (*TweetPage, error) {
	page, err := c.GetConversation(ctx, tweetID, p)
	if err != nil {
		return nil, err
	}

	var focal *Tweet
	for i := range page.Tweets {
		if page.Tweets[i].ID == tweetID {
			focal = &page.Tweets[i]
			break
		}
	}
	if focal == nil {
		return nil, newError(ErrNotFound, "tweet %s not found", tweetID)
	}

	conversationID := focal.ConversationID
	if conversationID == "" {
		conversationID = focal.ID
	}

	thread := make([]Tweet, 0, len(page.Tweets))
	for _, t := range page.Tweets {
		if t.ConversationID == conversationID || t.ID == conversationID {
			thread = append(thread, t)
		}
	}
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return &TweetPage{Tweets: thread, NextCursor: page.NextCursor}, nil
}

// Search runs a raw search query against the Latest product.
func (c *Client) Search(ctx context.Context, query string, p PaginationOptions) (*TweetPage, error) {
	result, err := paginate(ctx, c.tweetPaginateOpts(p, false), tweetKey,
		func(ctx context.Context, count int, cursor string) (Page[Tweet], error) {
			variables := map[string]any{
				"rawQuery":    query,
				"count":       count,
				"querySource": "typed_query",
				"product":     "Latest",
			}
			if cursor != "" {
				variables["cursor"] = cursor
			}
			body, err := c.callGET(ctx, "SearchTimeline", variables)
			if err != nil {
				return Page[Tweet]{}, err
			}
			var resp SearchTimelineResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return Page[Tweet]{}, wrapError(ErrUpstream, err, "malformed search payload")
			}
			tweets, next := normalizeTweets(resp.Data.SearchByRawQuery.SearchTimeline.Timeline.Instructions, c.normOpts())
			return Page[Tweet]{Items: tweets, NextCursor: next}, nil
		})
	if err != nil {
		return nil, err
	}
	return &TweetPage{Tweets: result.Items, NextCursor: result.NextCursor}, nil
}

// GetMentions fetches tweets mentioning the authenticated user, via search.
func (c *Client) GetMentions(ctx context.Context, p PaginationOptions) (*TweetPage, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, fmt.Sprintf("@%s", me.Username), p)
}

// userTimeline drives one of the user-keyed timeline operations that share
// the UserTimelineResponse envelope.
func (c *Client) userTimeline(ctx context.Context, opName, userID string, p PaginationOptions) (*TweetPage, error) {
	result, err := paginate(ctx, c.tweetPaginateOpts(p, false), tweetKey,
		func(ctx context.Context, count int, cursor string) (Page[Tweet], error) {
			variables := map[string]any{
				"userId":                 userID,
				"count":                  count,
				"includePromotedContent": false,
				"withVoice":              true,
				"withV2Timeline":         true,
			}
			if cursor != "" {
				variables["cursor"] = cursor
			}
			body, err := c.callGET(ctx, opName, variables)
			if err != nil {
				return Page[Tweet]{}, err
			}
			var resp UserTimelineResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return Page[Tweet]{}, wrapError(ErrUpstream, err, "malformed timeline payload")
			}
			tweets, next := normalizeTweets(resp.instructions(), c.normOpts())
			return Page[Tweet]{Items: tweets, NextCursor: next}, nil
		})
	if err != nil {
		return nil, err
	}
	return &TweetPage{Tweets: result.Items, NextCursor: result.NextCursor}, nil
}

// GetUserTweets fetches a user's tweets by screen name.
func (c *Client) GetUserTweets(ctx context.Context, username string, p PaginationOptions) (*TweetPage, error) {
	user, err := c.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return c.userTimeline(ctx, "UserTweets", user.ID, p)
}

// GetLikes fetches the authenticated user's liked tweets.
func (c *Client) GetLikes(ctx context.Context, p PaginationOptions) (*TweetPage, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.userTimeline(ctx, "Likes", me.ID, p)
}

// GetBookmarks fetches the authenticated user's bookmarks. Retries through
// transient throttling, which this endpoint hands out freely.
func (c *Client) GetBookmarks(ctx context.Context, folderID string, p PaginationOptions) (*TweetPage, error) {
	opName := "Bookmarks"
	if folderID != "" {
		opName = "BookmarkFolderTimeline"
	}
	fetch := withThrottleRetry(func(ctx context.Context, count int, cursor string) (Page[Tweet], error) {
		variables := map[string]any{
			"count":                  count,
			"includePromotedContent": false,
		}
		if folderID != "" {
			variables["bookmark_collection_id"] = folderID
		}
		if cursor != "" {
			variables["cursor"] = cursor
		}
		body, err := c.callGET(ctx, opName, variables)
		if err != nil {
			return Page[Tweet]{}, err
		}
		var resp BookmarksResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Page[Tweet]{}, wrapError(ErrUpstream, err, "malformed bookmarks payload")
		}
		tweets, next := normalizeTweets(resp.instructions(), c.normOpts())
		return Page[Tweet]{Items: tweets, NextCursor: next}, nil
	})

	result, err := paginate(ctx, c.tweetPaginateOpts(p, false), tweetKey, fetch)
	if err != nil {
		return nil, err
	}
	return &TweetPage{Tweets: result.Items, NextCursor: result.NextCursor}, nil
}
