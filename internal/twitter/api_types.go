package twitter

import (
	"encoding/json"
	"strconv"
	"time"
)

// Raw response shapes for the upstream GraphQL API. The upstream moves fields
// around between endpoints and feature-flag states, so every pointer here is
// genuinely optional and decoding is tolerant: a field that fails to parse is
// zeroed, never fatal for the page.

// flexInt64 decodes an int64 that the upstream serializes either as a JSON
// number or as a quoted string.
type flexInt64 int64

func (v *flexInt64) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		*v = flexInt64(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	*v = flexInt64(n)
	return nil
}

// rubyTime decodes the legacy "Mon Jan 02 15:04:05 -0700 2006" timestamp.
// Parse failures yield the zero time rather than aborting the entry.
type rubyTime struct {
	time.Time
}

func (v *rubyTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	if t, err := time.Parse(time.RubyDate, s); err == nil {
		v.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		v.Time = t
	}
	return nil
}

// ========= Timeline envelope

type RawTimeline struct {
	Instructions []RawInstruction `json:"instructions"`
}

type RawInstruction struct {
	Type    string     `json:"type"`
	Entries []RawEntry `json:"entries"`
	Entry   *RawEntry  `json:"entry"` // TimelineReplaceEntry carries a single entry
}

type RawEntry struct {
	EntryID   string     `json:"entryId"`
	SortIndex flexInt64  `json:"sortIndex"`
	Content   RawContent `json:"content"`
}

// RawContent is the union of every entry content shape the upstream emits:
// a direct item, a single nested item, or a module of sub-items. Cursor
// entries reuse the same struct with EntryType "TimelineTimelineCursor".
type RawContent struct {
	EntryType   string          `json:"entryType"`
	CursorType  string          `json:"cursorType"`
	Value       string          `json:"value"`
	ItemContent *RawItemContent `json:"itemContent"`
	Item        *RawItem        `json:"item"`
	Items       []RawModuleItem `json:"items"`
}

type RawItem struct {
	ItemContent *RawItemContent `json:"itemContent"`
}

// RawModuleItem covers the three sub-item spellings observed inside a module:
// items[].item.itemContent, items[].itemContent, and items[].content.itemContent.
type RawModuleItem struct {
	EntryID     string          `json:"entryId"`
	Item        *RawItem        `json:"item"`
	ItemContent *RawItemContent `json:"itemContent"`
	Content     *RawItem        `json:"content"`
}

type RawItemContent struct {
	ItemType     string           `json:"itemType"`
	CursorType   string           `json:"cursorType"`
	Value        string           `json:"value"`
	TweetResults *RawTweetResults `json:"tweet_results"`
	UserResults  *RawUserResults  `json:"user_results"`
	List         *RawList         `json:"list"`
}

// ========= Tweets

type RawTweetResults struct {
	Result *RawTweetResult `json:"result"`
}

type RawTweetResult struct {
	Typename string `json:"__typename"`
	RestID   string `json:"rest_id"`
	// TweetWithVisibilityResults wraps the payload one level deeper.
	Tweet              *RawTweetResult  `json:"tweet"`
	Core               *RawTweetCore    `json:"core"`
	Legacy             *RawTweetLegacy  `json:"legacy"`
	NoteTweet          *RawNoteTweet    `json:"note_tweet"`
	Article            json.RawMessage  `json:"article"`
	QuotedStatusResult *RawTweetResults `json:"quoted_status_result"`
	Views              RawViews         `json:"views"`

	// Raw preserves the undecoded fragment for diagnostic passthrough.
	Raw json.RawMessage `json:"-"`
}

func (r *RawTweetResult) UnmarshalJSON(data []byte) error {
	type alias RawTweetResult
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = RawTweetResult(a)
	r.Raw = append([]byte(nil), data...)
	return nil
}

type RawTweetCore struct {
	UserResults RawUserResults `json:"user_results"`
}

type RawViews struct {
	Count flexInt64 `json:"count"`
}

type RawTweetLegacy struct {
	CreatedAt            rubyTime  `json:"created_at"`
	FullText             string    `json:"full_text"`
	ConversationIDStr    string    `json:"conversation_id_str"`
	InReplyToStatusIDStr string    `json:"in_reply_to_status_id_str"`
	QuotedStatusIDStr    string    `json:"quoted_status_id_str"`
	UserIDStr            string    `json:"user_id_str"`
	IDStr                string    `json:"id_str"`
	FavoriteCount        flexInt64 `json:"favorite_count"`
	QuoteCount           flexInt64 `json:"quote_count"`
	ReplyCount           flexInt64 `json:"reply_count"`
	RetweetCount         flexInt64 `json:"retweet_count"`
	IsQuoteStatus        bool      `json:"is_quote_status"`
	ExtendedEntities     struct {
		Media []RawMedia `json:"media"`
	} `json:"extended_entities"`
}

type RawMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     struct {
		Variants []struct {
			Bitrate     int64  `json:"bitrate"`
			ContentType string `json:"content_type"`
			URL         string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

type RawNoteTweet struct {
	IsExpandable     bool `json:"is_expandable"`
	NoteTweetResults struct {
		Result struct {
			Text string `json:"text"`
		} `json:"result"`
	} `json:"note_tweet_results"`
	// Older payloads put the text directly on the note block.
	Text string `json:"text"`
}

// ========= Users

type RawUserResults struct {
	Result *RawUserResult `json:"result"`
}

type RawUserResult struct {
	Typename string         `json:"__typename"`
	RestID   string         `json:"rest_id"`
	IsBlue   bool           `json:"is_blue_verified"`
	Core     *RawUserCore   `json:"core"`
	Avatar   *RawUserAvatar `json:"avatar"`
	Legacy   *RawUserLegacy `json:"legacy"`
}

// RawUserCore is the newer spelling for name/screen_name.
type RawUserCore struct {
	Name       string   `json:"name"`
	ScreenName string   `json:"screen_name"`
	CreatedAt  rubyTime `json:"created_at"`
}

type RawUserAvatar struct {
	ImageURL string `json:"image_url"`
}

type RawUserLegacy struct {
	Name            string    `json:"name"`
	ScreenName      string    `json:"screen_name"`
	Description     string    `json:"description"`
	FollowersCount  flexInt64 `json:"followers_count"`
	FriendsCount    flexInt64 `json:"friends_count"`
	StatusesCount   flexInt64 `json:"statuses_count"`
	Verified        bool      `json:"verified"`
	ProfileImageURL string    `json:"profile_image_url_https"`
	CreatedAt       rubyTime  `json:"created_at"`
}

// ========= Lists

type RawList struct {
	IDStr           string          `json:"id_str"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	MemberCount     flexInt64       `json:"member_count"`
	SubscriberCount flexInt64       `json:"subscriber_count"`
	Mode            *string         `json:"mode"`
	CreatedAt       int64           `json:"created_at"` // epoch millis
	UserResults     *RawUserResults `json:"user_results"`
}

// ========= Per-endpoint response envelopes

type graphQLEnvelope struct {
	Errors []APIError `json:"errors"`
}

type SearchTimelineResponse struct {
	Data struct {
		SearchByRawQuery struct {
			SearchTimeline struct {
				Timeline RawTimeline `json:"timeline"`
			} `json:"search_timeline"`
		} `json:"search_by_raw_query"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

type TweetDetailResponse struct {
	Data struct {
		ThreadedConversation struct {
			Instructions []RawInstruction `json:"instructions"`
		} `json:"threaded_conversation_with_injections_v2"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

type UserTimelineResponse struct {
	Data struct {
		User struct {
			Result struct {
				Timeline struct {
					Timeline RawTimeline `json:"timeline"`
				} `json:"timeline"`
				TimelineV2 struct {
					Timeline RawTimeline `json:"timeline"`
				} `json:"timeline_v2"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

func (r *UserTimelineResponse) instructions() []RawInstruction {
	if ins := r.Data.User.Result.TimelineV2.Timeline.Instructions; len(ins) > 0 {
		return ins
	}
	return r.Data.User.Result.Timeline.Timeline.Instructions
}

type BookmarksResponse struct {
	Data struct {
		BookmarkTimelineV2 struct {
			Timeline RawTimeline `json:"timeline"`
		} `json:"bookmark_timeline_v2"`
		BookmarkCollectionTimeline struct {
			Timeline RawTimeline `json:"timeline"`
		} `json:"bookmark_collection_timeline"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

func (r *BookmarksResponse) instructions() []RawInstruction {
	if ins := r.Data.BookmarkTimelineV2.Timeline.Instructions; len(ins) > 0 {
		return ins
	}
	return r.Data.BookmarkCollectionTimeline.Timeline.Instructions
}

type ListTimelineResponse struct {
	Data struct {
		List struct {
			TweetsTimeline struct {
				Timeline RawTimeline `json:"timeline"`
			} `json:"tweets_timeline"`
		} `json:"list"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

type ListListResponse struct {
	Data struct {
		User struct {
			Result struct {
				Timeline struct {
					Timeline RawTimeline `json:"timeline"`
				} `json:"timeline"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

type UserByScreenNameResponse struct {
	Data struct {
		User struct {
			Result *RawUserResult `json:"result"`
		} `json:"user"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

type CreateTweetResponse struct {
	Data struct {
		CreateTweet struct {
			TweetResults RawTweetResults `json:"tweet_results"`
		} `json:"create_tweet"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}

type DeleteTweetResponse struct {
	Data struct {
		DeleteTweet struct {
			TweetResults RawTweetResults `json:"tweet_results"`
		} `json:"delete_tweet"`
	} `json:"data"`
	Errors []APIError `json:"errors"`
}
