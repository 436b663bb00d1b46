package twitter

import (
	"context"
	"encoding/json"
)

// listList drives the two list-enumeration operations, which share the
// ListListResponse envelope.
func (c *Client) listList(ctx context.Context, opName, userID string, p PaginationOptions) (*ListPage, error) {
	opts := paginateOptions{
		Target:   p.target(),
		Cursor:   p.Cursor,
		MaxPages: p.MaxPages,
		PageSize: c.opts.PageSize,
	}
	result, err := paginate(ctx, opts, listKey,
		func(ctx context.Context, count int, cursor string) (Page[List], error) {
			variables := map[string]any{
				"userId": userID,
				"count":  count,
			}
			if cursor != "" {
				variables["cursor"] = cursor
			}
			body, err := c.callGET(ctx, opName, variables)
			if err != nil {
				return Page[List]{}, err
			}
			var resp ListListResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return Page[List]{}, wrapError(ErrUpstream, err, "malformed list payload")
			}
			lists, next := normalizeLists(resp.Data.User.Result.Timeline.Timeline.Instructions)
			return Page[List]{Items: lists, NextCursor: next}, nil
		})
	if err != nil {
		return nil, err
	}
	return &ListPage{Lists: result.Items, NextCursor: result.NextCursor}, nil
}

// GetLists fetches lists owned by the authenticated user.
func (c *Client) GetLists(ctx context.Context, p PaginationOptions) (*ListPage, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.listList(ctx, "ListOwnerships", me.ID, p)
}

// GetListMemberships fetches lists the authenticated user is a member of.
func (c *Client) GetListMemberships(ctx context.Context, p PaginationOptions) (*ListPage, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.listList(ctx, "ListMemberships", me.ID, p)
}

// GetListTimeline fetches the latest tweets of a list.
func (c *Client) GetListTimeline(ctx context.Context, listID string, p PaginationOptions) (*TweetPage, error) {
	result, err := paginate(ctx, c.tweetPaginateOpts(p, false), tweetKey,
		func(ctx context.Context, count int, cursor string) (Page[Tweet], error) {
			variables := map[string]any{
				"listId": listID,
				"count":  count,
			}
			if cursor != "" {
				variables["cursor"] = cursor
			}
			body, err := c.callGET(ctx, "ListLatestTweetsTimeline", variables)
			if err != nil {
				return Page[Tweet]{}, err
			}
			var resp ListTimelineResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return Page[Tweet]{}, wrapError(ErrUpstream, err, "malformed list timeline payload")
			}
			tweets, next := normalizeTweets(resp.Data.List.TweetsTimeline.Timeline.Instructions, c.normOpts())
			return Page[Tweet]{Items: tweets, NextCursor: next}, nil
		})
	if err != nil {
		return nil, err
	}
	return &TweetPage{Tweets: result.Items, NextCursor: result.NextCursor}, nil
}
