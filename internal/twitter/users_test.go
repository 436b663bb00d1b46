package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "UserByScreenName", graphqlOpName(r.URL.Path))
		_, _ = w.Write([]byte(`{"data":{"user":{"result":{
			"rest_id":"42","is_blue_verified":false,
			"legacy":{"screen_name":"alice","name":"Alice","description":"writes Go","followers_count":10,"friends_count":20,"statuses_count":30}
		}}}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	user, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int64(10), user.FollowersCount)
}

func TestGetUserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"user":{}}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	_, err := c.GetUser(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, Is(err, ErrNotFound))
}

func TestCurrentUserViaVerifyCredentials(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/i/api/1.1/account/verify_credentials.json", r.URL.Path)
		calls++
		_, _ = w.Write([]byte(`{"id_str":"7","screen_name":"me","name":"Me Myself"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me", user.Username)
	assert.Equal(t, "7", user.ID)

	// Second call is served from the client cache.
	_, err = c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCurrentUserFallsBackToSettings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/i/api/1.1/account/verify_credentials.json":
			http.Error(w, "nope", http.StatusForbidden)
		case "/i/api/1.1/account/settings.json":
			_, _ = w.Write([]byte(`{"screen_name":"me"}`))
		default:
			require.Equal(t, "UserByScreenName", graphqlOpName(r.URL.Path))
			_, _ = w.Write([]byte(`{"data":{"user":{"result":{"rest_id":"8","legacy":{"screen_name":"me","name":"Me"}}}}}`))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8", user.ID)
}

func TestCurrentUserFallsBackToSettingsPageScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/i/api/1.1/account/verify_credentials.json",
			"/i/api/1.1/account/settings.json":
			http.Error(w, "nope", http.StatusForbidden)
		case "/settings/account":
			_, _ = w.Write([]byte(`<html><script>window.__STATE={"screen_name":"scraped","id_str":"99","name":"Scraped Me"}</script></html>`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scraped", user.Username)
	assert.Equal(t, "99", user.ID)
}

func usersTimelinePayload(cursor string, users ...string) string {
	entries := ""
	for i, u := range users {
		if i > 0 {
			entries += ","
		}
		entries += fmt.Sprintf(`{"entryId":"u%d","content":{"entryType":"TimelineTimelineItem","itemContent":{"user_results":{"result":%s}}}}`, i, u)
	}
	if cursor != "" {
		if entries != "" {
			entries += ","
		}
		entries += fmt.Sprintf(`{"entryId":"cursor","content":{"entryType":"TimelineTimelineCursor","cursorType":"Bottom","value":%q}}`, cursor)
	}
	return fmt.Sprintf(`{"data":{"user":{"result":{"timeline":{"timeline":{"instructions":[{"type":"TimelineAddEntries","entries":[%s]}]}}}}}}`, entries)
}

func TestGetFollowers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch graphqlOpName(r.URL.Path) {
		case "UserByScreenName":
			_, _ = w.Write([]byte(`{"data":{"user":{"result":{"rest_id":"u-1","legacy":{"screen_name":"alice"}}}}}`))
		case "Followers":
			var variables map[string]any
			require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables))
			assert.Equal(t, "u-1", variables["userId"])
			_, _ = w.Write([]byte(usersTimelinePayload("",
				`{"rest_id":"f1","legacy":{"screen_name":"fan_one","name":"Fan"}}`,
				`{"rest_id":"f2","legacy":{"screen_name":"fan_two","name":"Fan II"}}`)))
		default:
			t.Errorf("unexpected operation %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	page, err := c.GetFollowers(context.Background(), "alice", PaginationOptions{Count: 2})
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "fan_one", page.Users[0].Username)
}
