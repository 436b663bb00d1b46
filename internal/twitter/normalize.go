package twitter

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// The normalizer flattens the upstream's nested instruction envelopes into
// the canonical tweet/user/list model. Entries arrive in several
// interchangeable shapes and individual items are frequently partial or
// garbled; anything that cannot yield a well-formed record is dropped
// silently so one bad entry never aborts a page.

var cursorTypes = map[string]bool{
	"Bottom":                true,
	"ShowMoreThreads":       true,
	"ShowMoreThreadsPrompt": true,
}

type normalizeOptions struct {
	quoteDepth int
	includeRaw bool
}

// collectItemContents gathers every item content reachable from one entry,
// covering all the spellings the upstream uses interchangeably: a direct
// itemContent, item.itemContent, and the three module sub-item forms
// (items[].item.itemContent, items[].itemContent, items[].content.itemContent).
func collectItemContents(content RawContent) []*RawItemContent {
	var out []*RawItemContent
	if content.ItemContent != nil {
		out = append(out, content.ItemContent)
	}
	if content.Item != nil && content.Item.ItemContent != nil {
		out = append(out, content.Item.ItemContent)
	}
	for _, item := range content.Items {
		switch {
		case item.Item != nil && item.Item.ItemContent != nil:
			out = append(out, item.Item.ItemContent)
		case item.ItemContent != nil:
			out = append(out, item.ItemContent)
		case item.Content != nil && item.Content.ItemContent != nil:
			out = append(out, item.Content.ItemContent)
		}
	}
	return out
}

// walkEntries visits every entry of every instruction, including the single
// replaced entry of TimelineReplaceEntry and pinned entries.
func walkEntries(instructions []RawInstruction, visit func(entry RawEntry)) {
	for _, instruction := range instructions {
		if instruction.Entry != nil {
			visit(*instruction.Entry)
		}
		for _, entry := range instruction.Entries {
			visit(entry)
		}
	}
}

// bottomCursor scans an instruction list for the "bottom" pagination cursor.
func bottomCursor(instructions []RawInstruction) string {
	cursor := ""
	walkEntries(instructions, func(entry RawEntry) {
		if entry.Content.EntryType == "TimelineTimelineCursor" && cursorTypes[entry.Content.CursorType] {
			cursor = entry.Content.Value
			return
		}
		for _, ic := range collectItemContents(entry.Content) {
			if ic.ItemType == "TimelineTimelineCursor" && cursorTypes[ic.CursorType] {
				cursor = ic.Value
			}
		}
	})
	return cursor
}

// normalizeTweets flattens instructions into an order-preserving, per-page
// de-duplicated tweet list plus the bottom cursor.
func normalizeTweets(instructions []RawInstruction, o normalizeOptions) ([]Tweet, string) {
	tweets := make([]Tweet, 0)
	seen := make(map[string]bool)

	walkEntries(instructions, func(entry RawEntry) {
		for _, ic := range collectItemContents(entry.Content) {
			if ic.TweetResults == nil || ic.TweetResults.Result == nil {
				continue
			}
			tweet, ok := normalizeTweetResult(ic.TweetResults.Result, o.quoteDepth, o)
			if !ok || seen[tweet.ID] {
				continue
			}
			seen[tweet.ID] = true
			tweets = append(tweets, tweet)
		}
	})

	return tweets, bottomCursor(instructions)
}

// normalizeTweetResult builds one canonical tweet. It requires both a unique
// tweet identifier and a non-empty author handle; otherwise the item is
// dropped. quoteDepth bounds recursive quote embedding: 0 disables it.
func normalizeTweetResult(result *RawTweetResult, quoteDepth int, o normalizeOptions) (Tweet, bool) {
	// TweetWithVisibilityResults nests the actual payload one level down.
	if result.Tweet != nil {
		result = result.Tweet
	}

	id := result.RestID
	legacy := result.Legacy
	if id == "" && legacy != nil {
		id = legacy.IDStr
	}
	if id == "" {
		return Tweet{}, false
	}

	var author Author
	var authorID string
	if result.Core != nil {
		if user, ok := normalizeUserResult(result.Core.UserResults.Result); ok {
			author = Author{Username: user.Username, Name: user.Name}
			authorID = user.ID
		}
	}
	if author.Username == "" {
		return Tweet{}, false
	}

	text, ok := resolveTweetText(result)
	if !ok {
		return Tweet{}, false
	}

	tweet := Tweet{
		ID:       id,
		Text:     text,
		Author:   author,
		AuthorID: authorID,
	}
	if legacy != nil {
		tweet.CreatedAt = legacy.CreatedAt.Time
		tweet.ReplyCount = int64(legacy.ReplyCount)
		tweet.RetweetCount = int64(legacy.RetweetCount)
		tweet.LikeCount = int64(legacy.FavoriteCount)
		tweet.ConversationID = legacy.ConversationIDStr
		tweet.InReplyToStatusID = legacy.InReplyToStatusIDStr
		tweet.Media = normalizeMedia(legacy.ExtendedEntities.Media)
		if authorID == "" {
			tweet.AuthorID = legacy.UserIDStr
		}
	}

	if quoteDepth > 0 && result.QuotedStatusResult != nil && result.QuotedStatusResult.Result != nil {
		if quoted, ok := normalizeTweetResult(result.QuotedStatusResult.Result, quoteDepth-1, o); ok {
			tweet.QuotedTweet = &quoted
		}
	}

	if o.includeRaw {
		tweet.Raw = result.Raw
	}

	return tweet, true
}

func normalizeMedia(raws []RawMedia) []Media {
	if len(raws) == 0 {
		return nil
	}
	out := make([]Media, 0, len(raws))
	for _, m := range raws {
		media := Media{Type: m.Type, URL: m.MediaURLHTTPS}
		// Videos and gifs carry their playable URL in the highest-bitrate
		// mp4 variant; the media_url is just the poster frame.
		if len(m.VideoInfo.Variants) > 0 {
			best := ""
			var bestBitrate int64 = -1
			for _, v := range m.VideoInfo.Variants {
				if v.ContentType == "video/mp4" && v.Bitrate > bestBitrate {
					best = v.URL
					bestBitrate = v.Bitrate
				}
			}
			if best != "" {
				media.PreviewURL = m.MediaURLHTTPS
				media.URL = best
			}
		}
		if media.URL == "" {
			continue
		}
		out = append(out, media)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ========= Text resolution

// resolveTweetText applies the precedence contract: long-form article body
// first, then long-form note body, then the standard short text. A tweet
// with no resolvable text anywhere is dropped.
func resolveTweetText(result *RawTweetResult) (string, bool) {
	if text := articleText(result.Article); text != "" {
		return text, true
	}
	if text := noteText(result.NoteTweet); text != "" {
		return text, true
	}
	if result.Legacy != nil && result.Legacy.FullText != "" {
		return result.Legacy.FullText, true
	}
	return "", false
}

func noteText(note *RawNoteTweet) string {
	if note == nil {
		return ""
	}
	if text := note.NoteTweetResults.Result.Text; text != "" {
		return text
	}
	return note.Text
}

// articleTextPaths is the precedence-ordered list of nesting locations the
// article body has been observed at. First non-empty hit wins.
var articleTextPaths = [][]string{
	{"article_results", "result", "content_state", "text"},
	{"article_results", "result", "body", "text"},
	{"article_results", "result", "preview_text"},
	{"article_results", "result", "text"},
	{"article_result", "result", "content_state", "text"},
	{"article_result", "result", "body", "text"},
	{"article_result", "result", "preview_text"},
	{"article_result", "result", "text"},
	{"result", "content_state", "text"},
	{"result", "body", "text"},
	{"result", "preview_text"},
	{"result", "text"},
	{"content_state", "text"},
	{"body", "text"},
	{"text"},
	{"preview_text"},
}

var articleTitlePaths = [][]string{
	{"article_results", "result", "title"},
	{"article_result", "result", "title"},
	{"result", "title"},
	{"title"},
}

// articleText resolves a long-form article body from its raw fragment. The
// direct paths are tried in order; when none yields content, a generic
// recursive scan collects every string found under "text"/"title" keys.
// A title distinct from the body is prefixed onto it.
func articleText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var article map[string]any
	if err := json.Unmarshal(raw, &article); err != nil {
		return ""
	}

	body := firstPathString(article, articleTextPaths)
	title := firstPathString(article, articleTitlePaths)

	if body == "" {
		texts, titles := scanTextLeaves(article, 0)
		body = strings.Join(texts, "\n\n")
		if title == "" && len(titles) > 0 {
			title = titles[0]
		}
	}
	if body == "" {
		return ""
	}
	if title != "" && title != body && !strings.HasPrefix(body, title) {
		return title + "\n\n" + body
	}
	return body
}

func firstPathString(m map[string]any, paths [][]string) string {
	for _, path := range paths {
		if s := pathString(m, path); s != "" {
			return s
		}
	}
	return ""
}

func pathString(m map[string]any, path []string) string {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = obj[key]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}

const scanMaxDepth = 12

// scanTextLeaves walks an arbitrary JSON value collecting string leaves under
// keys named "text" and "title", preserving encounter order.
func scanTextLeaves(v any, depth int) (texts, titles []string) {
	if depth > scanMaxDepth {
		return nil, nil
	}
	switch val := v.(type) {
	case map[string]any:
		for _, key := range sortedKeys(val) {
			child := val[key]
			if s, ok := child.(string); ok && s != "" {
				switch key {
				case "text":
					texts = append(texts, s)
				case "title":
					titles = append(titles, s)
				}
				continue
			}
			childTexts, childTitles := scanTextLeaves(child, depth+1)
			texts = append(texts, childTexts...)
			titles = append(titles, childTitles...)
		}
	case []any:
		for _, child := range val {
			childTexts, childTitles := scanTextLeaves(child, depth+1)
			texts = append(texts, childTexts...)
			titles = append(titles, childTitles...)
		}
	}
	return texts, titles
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ========= Users

// normalizeUsers flattens a user-shaped timeline into users plus the bottom
// cursor.
func normalizeUsers(instructions []RawInstruction) ([]User, string) {
	users := make([]User, 0)
	seen := make(map[string]bool)

	walkEntries(instructions, func(entry RawEntry) {
		for _, ic := range collectItemContents(entry.Content) {
			if ic.UserResults == nil {
				continue
			}
			user, ok := normalizeUserResult(ic.UserResults.Result)
			if !ok || seen[user.ID] {
				continue
			}
			seen[user.ID] = true
			users = append(users, user)
		}
	})

	return users, bottomCursor(instructions)
}

// normalizeUserResult builds a canonical user. ID and username are required;
// name/screen_name are read from the newer core block first, then legacy.
func normalizeUserResult(result *RawUserResult) (User, bool) {
	if result == nil || result.RestID == "" {
		return User{}, false
	}
	user := User{ID: result.RestID}

	if result.Core != nil {
		user.Username = result.Core.ScreenName
		user.Name = result.Core.Name
		user.CreatedAt = result.Core.CreatedAt.Time
	}
	if legacy := result.Legacy; legacy != nil {
		if user.Username == "" {
			user.Username = legacy.ScreenName
		}
		if user.Name == "" {
			user.Name = legacy.Name
		}
		user.Bio = legacy.Description
		user.FollowersCount = int64(legacy.FollowersCount)
		user.FollowingCount = int64(legacy.FriendsCount)
		user.TweetCount = int64(legacy.StatusesCount)
		user.Verified = legacy.Verified
		user.AvatarURL = legacy.ProfileImageURL
		if user.CreatedAt.IsZero() {
			user.CreatedAt = legacy.CreatedAt.Time
		}
	}
	if result.Avatar != nil && result.Avatar.ImageURL != "" {
		user.AvatarURL = result.Avatar.ImageURL
	}
	if result.IsBlue {
		user.Verified = true
	}

	if user.Username == "" {
		return User{}, false
	}
	return user, true
}

// ========= Lists

// normalizeLists flattens a list-shaped timeline into lists plus the bottom
// cursor.
func normalizeLists(instructions []RawInstruction) ([]List, string) {
	lists := make([]List, 0)
	seen := make(map[string]bool)

	walkEntries(instructions, func(entry RawEntry) {
		for _, ic := range collectItemContents(entry.Content) {
			if ic.List == nil {
				continue
			}
			list, ok := normalizeList(ic.List)
			if !ok || seen[list.ID] {
				continue
			}
			seen[list.ID] = true
			lists = append(lists, list)
		}
	})

	return lists, bottomCursor(instructions)
}

// normalizeList builds a canonical list. Privacy derives case-insensitively
// from the mode string; an absent or null mode means public.
func normalizeList(raw *RawList) (List, bool) {
	if raw == nil || raw.IDStr == "" || raw.Name == "" {
		return List{}, false
	}
	list := List{
		ID:              raw.IDStr,
		Name:            raw.Name,
		Description:     raw.Description,
		MemberCount:     int64(raw.MemberCount),
		SubscriberCount: int64(raw.SubscriberCount),
	}
	if raw.Mode != nil && strings.EqualFold(*raw.Mode, "private") {
		list.IsPrivate = true
	}
	if raw.CreatedAt > 0 {
		list.CreatedAt = time.UnixMilli(raw.CreatedAt)
	}
	if raw.UserResults != nil {
		if owner, ok := normalizeUserResult(raw.UserResults.Result); ok {
			list.Owner = &ListOwner{ID: owner.ID, Username: owner.Username, Name: owner.Name}
		}
	}
	return list, true
}
