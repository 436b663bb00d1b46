package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphqlOpName pulls the operation name out of a graphql request path.
func graphqlOpName(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func searchPayload(cursor string, results ...string) string {
	entries := make([]string, 0, len(results)+1)
	for i, r := range results {
		entries = append(entries, fmt.Sprintf(
			`{"entryId":"t%d","content":{"entryType":"TimelineTimelineItem","itemContent":{"tweet_results":{"result":%s}}}}`, i, r))
	}
	if cursor != "" {
		entries = append(entries, fmt.Sprintf(
			`{"entryId":"cursor","content":{"entryType":"TimelineTimelineCursor","cursorType":"Bottom","value":%q}}`, cursor))
	}
	return fmt.Sprintf(`{"data":{"search_by_raw_query":{"search_timeline":{"timeline":{"instructions":[{"type":"TimelineAddEntries","entries":[%s]}]}}}}}`,
		strings.Join(entries, ","))
}

func TestSearchPaginatesUntilTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "SearchTimeline", graphqlOpName(r.URL.Path))
		var variables map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables))
		assert.Equal(t, "golang", variables["rawQuery"])
		assert.Equal(t, "Latest", variables["product"])

		cursor, _ := variables["cursor"].(string)
		switch cursor {
		case "":
			_, _ = w.Write([]byte(searchPayload("page-2",
				tweetResultJSON("1", "alice", "first"),
				tweetResultJSON("2", "bob", "second"))))
		default:
			assert.Equal(t, "page-2", cursor)
			_, _ = w.Write([]byte(searchPayload("",
				tweetResultJSON("3", "carol", "third"))))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	page, err := c.Search(context.Background(), "golang", PaginationOptions{Count: 3})
	require.NoError(t, err)
	require.Len(t, page.Tweets, 3)
	assert.Equal(t, "third", page.Tweets[2].Text)
	assert.Empty(t, page.NextCursor)
}

func TestSearchAllDrainsEveryPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var variables map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables))
		cursor, _ := variables["cursor"].(string)
		switch cursor {
		case "":
			_, _ = w.Write([]byte(searchPayload("page-2",
				tweetResultJSON("1", "alice", "first"),
				tweetResultJSON("2", "bob", "second"))))
		case "page-2":
			_, _ = w.Write([]byte(searchPayload("page-3",
				tweetResultJSON("3", "carol", "third"),
				tweetResultJSON("4", "dave", "fourth"))))
		default:
			_, _ = w.Write([]byte(searchPayload("",
				tweetResultJSON("5", "erin", "fifth"))))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	page, err := c.Search(context.Background(), "golang", PaginationOptions{All: true})
	require.NoError(t, err)
	require.Len(t, page.Tweets, 5)
	assert.Equal(t, "fifth", page.Tweets[4].Text)
	assert.Empty(t, page.NextCursor)
}

func detailPayload(results ...string) string {
	entries := make([]string, 0, len(results))
	for i, r := range results {
		entries = append(entries, fmt.Sprintf(
			`{"entryId":"d%d","content":{"entryType":"TimelineTimelineItem","itemContent":{"tweet_results":{"result":%s}}}}`, i, r))
	}
	return fmt.Sprintf(`{"data":{"threaded_conversation_with_injections_v2":{"instructions":[{"type":"TimelineAddEntries","entries":[%s]}]}}}`,
		strings.Join(entries, ","))
}

func conversationTweet(id, username, text, conversationID, inReplyTo string) string {
	return fmt.Sprintf(`{
		"rest_id": %q,
		"core": {"user_results": {"result": {"rest_id": "u-%s", "legacy": {"screen_name": %q}}}},
		"legacy": {
			"id_str": %q,
			"full_text": %q,
			"created_at": "Mon Sep 10 10:0%d:00 +0000 2018",
			"conversation_id_str": %q,
			"in_reply_to_status_id_str": %q
		}
	}`, id, username, username, id, text, int(id[len(id)-1]-'0'), conversationID, inReplyTo)
}

func newDetailServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "TweetDetail", graphqlOpName(r.URL.Path))
		_, _ = w.Write([]byte(detailPayload(
			conversationTweet("100", "alice", "thread start", "100", ""),
			conversationTweet("101", "alice", "thread part two", "100", "100"),
			conversationTweet("103", "alice", "thread part three", "100", "101"),
			conversationTweet("102", "bob", "a reply", "100", "100"),
		)))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetTweetFindsFocalTweet(t *testing.T) {
	c := newTestClient(t, newDetailServer(t), nil)
	tweet, err := c.GetTweet(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "thread part two", tweet.Text)
	assert.Equal(t, "100", tweet.InReplyToStatusID)
}

func TestGetTweetNotFound(t *testing.T) {
	c := newTestClient(t, newDetailServer(t), nil)
	_, err := c.GetTweet(context.Background(), "999")
	require.Error(t, err)
	assert.True(t, Is(err, ErrNotFound))
}

func TestGetRepliesFiltersDirectReplies(t *testing.T) {
	c := newTestClient(t, newDetailServer(t), nil)
	page, err := c.GetReplies(context.Background(), "100", PaginationOptions{})
	require.NoError(t, err)
	require.Len(t, page.Tweets, 2)
	assert.Equal(t, "101", page.Tweets[0].ID)
	assert.Equal(t, "102", page.Tweets[1].ID)
}

func TestGetThreadKeepsAllParticipantsInChronologicalOrder(t *testing.T) {
	c := newTestClient(t, newDetailServer(t), nil)
	page, err := c.GetThread(context.Background(), "101", PaginationOptions{})
	require.NoError(t, err)

	ids := make([]string, 0, len(page.Tweets))
	for _, tw := range page.Tweets {
		ids = append(ids, tw.ID)
	}
	assert.Equal(t, []string{"100", "101", "102", "103"}, ids)
	assert.Equal(t, "bob", page.Tweets[2].Author.Username)
}

func TestGetUserTweetsResolvesUserFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch graphqlOpName(r.URL.Path) {
		case "UserByScreenName":
			_, _ = w.Write([]byte(`{"data":{"user":{"result":{"rest_id":"u-77","legacy":{"screen_name":"alice","name":"Alice"}}}}}`))
		case "UserTweets":
			var variables map[string]any
			require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables))
			assert.Equal(t, "u-77", variables["userId"])
			_, _ = w.Write([]byte(fmt.Sprintf(
				`{"data":{"user":{"result":{"timeline_v2":{"timeline":{"instructions":[{"type":"TimelineAddEntries","entries":[
					{"entryId":"t0","content":{"entryType":"TimelineTimelineItem","itemContent":{"tweet_results":{"result":%s}}}}
				]}]}}}}}}`, tweetResultJSON("5", "alice", "from timeline"))))
		default:
			t.Errorf("unexpected operation %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	page, err := c.GetUserTweets(context.Background(), "alice", PaginationOptions{Count: 1})
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)
	assert.Equal(t, "from timeline", page.Tweets[0].Text)
}
