package twitter

import (
	"encoding/json"
	"time"
)

// Author identifies the account a tweet belongs to.
type Author struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Media describes one attachment on a tweet.
type Media struct {
	Type       string `json:"type"` // photo, video, animated_gif
	URL        string `json:"url"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Tweet is the canonical record every timeline-shaped endpoint flattens into.
// A Tweet is only constructed when both ID and Author.Username are known.
type Tweet struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Author           Author          `json:"author"`
	AuthorID         string          `json:"authorId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt,omitempty"`
	ReplyCount       int64           `json:"replyCount"`
	RetweetCount     int64           `json:"retweetCount"`
	LikeCount        int64           `json:"likeCount"`
	ConversationID   string          `json:"conversationId,omitempty"`
	InReplyToStatusID string         `json:"inReplyToStatusId,omitempty"`
	QuotedTweet      *Tweet          `json:"quotedTweet,omitempty"`
	Media            []Media         `json:"media,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// User is the canonical user record.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Bio            string    `json:"bio,omitempty"`
	FollowersCount int64     `json:"followersCount,omitempty"`
	FollowingCount int64     `json:"followingCount,omitempty"`
	TweetCount     int64     `json:"tweetCount,omitempty"`
	Verified       bool      `json:"verified,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// ListOwner is the owner block of a List, when present.
type ListOwner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// List is the canonical list record.
type List struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	MemberCount     int64      `json:"memberCount,omitempty"`
	SubscriberCount int64      `json:"subscriberCount,omitempty"`
	IsPrivate       bool       `json:"isPrivate"`
	Owner           *ListOwner `json:"owner,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
}

// TweetPage is one paginated batch of tweets. An empty NextCursor means the
// stream is exhausted; a non-empty one can be resubmitted to resume.
type TweetPage struct {
	Tweets     []Tweet `json:"tweets"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// UserPage is one paginated batch of users.
type UserPage struct {
	Users      []User `json:"users"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListPage is one paginated batch of lists.
type ListPage struct {
	Lists      []List `json:"lists"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PostResult is the outcome of a successful write.
type PostResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MediaUploadResult is the outcome of a finished media upload.
type MediaUploadResult struct {
	MediaID string `json:"mediaId"`
	Size    int64  `json:"size,omitempty"`
}
