package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
)

// GetUser resolves a user by screen name.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	body, err := c.callGET(ctx, "UserByScreenName", map[string]any{
		"screen_name":              username,
		"withSafetyModeUserFields": true,
	})
	if err != nil {
		return nil, err
	}
	var resp UserByScreenNameResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError(ErrUpstream, err, "malformed user payload")
	}
	user, ok := normalizeUserResult(resp.Data.User.Result)
	if !ok {
		return nil, newError(ErrNotFound, "user %s not found", username)
	}
	return &user, nil
}

// followTimeline drives the Following/Followers operations. Both are
// rate-sensitive enough to warrant a pause between pages.
func (c *Client) followTimeline(ctx context.Context, opName, username string, p PaginationOptions) (*UserPage, error) {
	user, err := c.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	opts := paginateOptions{
		Target:   p.target(),
		Cursor:   p.Cursor,
		MaxPages: p.MaxPages,
		PageSize: c.opts.PageSize,
		Delay:    slowPageDelay,
	}
	result, err := paginate(ctx, opts, userKey,
		func(ctx context.Context, count int, cursor string) (Page[User], error) {
			variables := map[string]any{
				"userId":                 user.ID,
				"count":                  count,
				"includePromotedContent": false,
			}
			if cursor != "" {
				variables["cursor"] = cursor
			}
			body, err := c.callGET(ctx, opName, variables)
			if err != nil {
				return Page[User]{}, err
			}
			var resp UserTimelineResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return Page[User]{}, wrapError(ErrUpstream, err, "malformed timeline payload")
			}
			users, next := normalizeUsers(resp.instructions())
			return Page[User]{Items: users, NextCursor: next}, nil
		})
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: result.Items, NextCursor: result.NextCursor}, nil
}

// GetFollowing fetches accounts a user follows.
func (c *Client) GetFollowing(ctx context.Context, username string, p PaginationOptions) (*UserPage, error) {
	return c.followTimeline(ctx, "Following", username, p)
}

// GetFollowers fetches a user's followers.
func (c *Client) GetFollowers(ctx context.Context, username string, p PaginationOptions) (*UserPage, error) {
	return c.followTimeline(ctx, "Followers", username, p)
}

// verifyCredentialsResponse is the REST shape shared by the two account
// endpoints used to identify the session owner.
type verifyCredentialsResponse struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type accountSettingsResponse struct {
	ScreenName string `json:"screen_name"`
}

var (
	reSettingsScreenName = regexp.MustCompile(`"screen_name"\s*:\s*"([A-Za-z0-9_]+)"`)
	reSettingsIDStr      = regexp.MustCompile(`"id_str"\s*:\s*"([0-9]+)"`)
	reSettingsName       = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// CurrentUser identifies the session owner. The result is cached on the
// client for the lifetime of the process. Resolution tries the cheap REST
// endpoints first and falls back to scraping the authenticated settings page
// when both are unavailable.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	c.meMu.Lock()
	defer c.meMu.Unlock()
	if c.me != nil {
		return c.me, nil
	}

	var vc verifyCredentialsResponse
	if err := c.restGET(ctx, "/i/api/1.1/account/verify_credentials.json", &vc); err == nil && vc.ScreenName != "" {
		c.me = &User{ID: vc.IDStr, Username: vc.ScreenName, Name: vc.Name}
		return c.me, nil
	}

	var settings accountSettingsResponse
	if err := c.restGET(ctx, "/i/api/1.1/account/settings.json", &settings); err == nil && settings.ScreenName != "" {
		user, err := c.GetUser(ctx, settings.ScreenName)
		if err != nil {
			return nil, err
		}
		c.me = user
		return c.me, nil
	}

	user, err := c.scrapeCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	c.me = user
	return c.me, nil
}

// scrapeCurrentUser pulls identity out of the logged-in settings page markup,
// which embeds the session owner's record in an inline state blob.
func (c *Client) scrapeCurrentUser(ctx context.Context) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.opts.APIBase+"/settings/account", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	status, _, body, err := c.do(req)
	if err != nil {
		return nil, wrapError(ErrUpstream, err, "request failed")
	}
	if status != http.StatusOK {
		return nil, &StatusError{StatusCode: status, Body: string(body)}
	}

	screenName := firstSubmatch(reSettingsScreenName, body)
	if screenName == "" {
		return nil, newError(ErrUpstream, "could not identify session owner")
	}
	user := &User{
		ID:       firstSubmatch(reSettingsIDStr, body),
		Username: screenName,
		Name:     firstSubmatch(reSettingsName, body),
	}
	if user.ID == "" {
		resolved, err := c.GetUser(ctx, screenName)
		if err == nil {
			return resolved, nil
		}
	}
	return user, nil
}

func firstSubmatch(re *regexp.Regexp, body []byte) string {
	if m := re.FindSubmatch(body); len(m) > 1 {
		return string(m[1])
	}
	return ""
}
