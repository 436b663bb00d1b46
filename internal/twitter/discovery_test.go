package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// discoveryServer serves one entry page referencing the given bundles, and
// the bundle bodies themselves.
func discoveryServer(t *testing.T, bundles map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/home", func(w http.ResponseWriter, _ *http.Request) {
		var sb strings.Builder
		sb.WriteString("<html><head>")
		for name := range bundles {
			fmt.Fprintf(&sb, `<script src="%s/client-web/%s"></script>`, server.URL, name)
		}
		sb.WriteString("</head></html>")
		_, _ = w.Write([]byte(sb.String()))
	})
	mux.HandleFunc("/client-web/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/client-web/")
		body, ok := bundles[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	return server
}

func TestDiscoverExtractsBothKeyOrders(t *testing.T) {
	server := discoveryServer(t, map[string]string{
		"main.abc.js": `e.exports={queryId:"id-first-123",operationName:"TweetDetail",operationType:"query"};` +
			`e.exports={operationName:"SearchTimeline",queryId:"name_first_456"};`,
	})

	d := NewDiscoverer(server.Client(), server.URL+"/home")
	ids, sources, err := d.Discover(context.Background(), []string{"TweetDetail", "SearchTimeline"})
	require.NoError(t, err)
	assert.Equal(t, "id-first-123", ids["TweetDetail"])
	assert.Equal(t, "name_first_456", ids["SearchTimeline"])
	assert.Len(t, sources.Bundles, 1)
}

func TestDiscoverProximityFallback(t *testing.T) {
	// The strict pair matchers miss when obfuscation splits the literal;
	// the id should still be found near the quoted operation name.
	server := discoveryServer(t, map[string]string{
		"chunk.def.js": `var n="UserTweets";var q={queryId:"nearby-789",other:1};register(n,q);`,
	})

	d := NewDiscoverer(server.Client(), server.URL+"/home")
	ids, _, err := d.Discover(context.Background(), []string{"UserTweets"})
	require.NoError(t, err)
	assert.Equal(t, "nearby-789", ids["UserTweets"])
}

func TestDiscoverToleratesGarbageBundles(t *testing.T) {
	server := discoveryServer(t, map[string]string{
		"garbage.js": "\x00\x01 not even javascript {{{",
		"good.js":    `queryId:"real-id",operationName:"Following"`,
	})

	d := NewDiscoverer(server.Client(), server.URL+"/home")
	ids, _, err := d.Discover(context.Background(), []string{"Following"})
	require.NoError(t, err)
	assert.Equal(t, "real-id", ids["Following"])
}

func TestDiscoverUnresolvedNamesAreAbsent(t *testing.T) {
	server := discoveryServer(t, map[string]string{
		"main.js": `queryId:"only-one",operationName:"TweetDetail"`,
	})

	d := NewDiscoverer(server.Client(), server.URL+"/home")
	ids, _, err := d.Discover(context.Background(), []string{"TweetDetail", "Followers"})
	require.NoError(t, err)
	assert.Equal(t, "only-one", ids["TweetDetail"])
	_, ok := ids["Followers"]
	assert.False(t, ok)
}

func TestDiscoverNoBundlesIsAnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/home", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>no scripts here</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d := NewDiscoverer(server.Client(), server.URL+"/home")
	_, _, err := d.Discover(context.Background(), []string{"TweetDetail"})
	require.Error(t, err)
}

func TestDiscoverToleratesFailingPages(t *testing.T) {
	server := discoveryServer(t, map[string]string{
		"main.js": `queryId:"abc",operationName:"TweetDetail"`,
	})

	// The dead page is skipped; the live one still yields bundles.
	d := NewDiscoverer(server.Client(), server.URL+"/nonexistent", server.URL+"/home")
	ids, _, err := d.Discover(context.Background(), []string{"TweetDetail"})
	require.NoError(t, err)
	assert.Equal(t, "abc", ids["TweetDetail"])
}

func TestNewDiscovererDefaultClientHasTimeout(t *testing.T) {
	d := NewDiscoverer(nil)
	assert.Equal(t, defaultDiscoveryTimeout, d.httpClient.Timeout,
		"a hung fetch must not stall a shared refresh")
}

func TestExtractQueryIDsFirstMatchWins(t *testing.T) {
	body := `queryId:"first",operationName:"TweetDetail" queryId:"second",operationName:"TweetDetail"`
	ids := extractQueryIDs(body, map[string]bool{"TweetDetail": true})
	assert.Equal(t, "first", ids["TweetDetail"])
}
