package twitter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PostOptions tunes a CreateTweet call.
type PostOptions struct {
	InReplyTo string
	MediaIDs  []string
}

// CreateTweet posts a tweet. The GraphQL operation is tried first; when
// every identifier candidate is rejected the generic v2 REST endpoint takes
// over, and a post flagged as automated falls back to the legacy status
// form, which runs under a different abuse heuristic.
func (c *Client) CreateTweet(ctx context.Context, text string, opts PostOptions) (*PostResult, error) {
	result, err := c.createTweetGraphQL(ctx, text, opts)
	if err == nil {
		return result, nil
	}

	switch {
	case Is(err, ErrIdentifierStale):
		log.Printf("[WARN] graphql post unavailable, falling back to v2 endpoint: %s", err)
		return c.createTweetV2(ctx, text, opts)
	case Is(err, ErrAutomatedRejection):
		log.Printf("[WARN] post flagged as automated, falling back to legacy endpoint")
		return c.createTweetLegacy(ctx, text, opts)
	}
	return nil, err
}

func (c *Client) createTweetGraphQL(ctx context.Context, text string, opts PostOptions) (*PostResult, error) {
	variables := map[string]any{
		"tweet_text":              text,
		"dark_request":            false,
		"semantic_annotation_ids": []any{},
	}
	if opts.InReplyTo != "" {
		variables["reply"] = map[string]any{
			"in_reply_to_tweet_id":   opts.InReplyTo,
			"exclude_reply_user_ids": []any{},
		}
	}
	if len(opts.MediaIDs) > 0 {
		entities := make([]map[string]any, 0, len(opts.MediaIDs))
		for _, id := range opts.MediaIDs {
			entities = append(entities, map[string]any{"media_id": id, "tagged_users": []any{}})
		}
		variables["media"] = map[string]any{
			"media_entities":     entities,
			"possibly_sensitive": false,
		}
	}

	body, err := c.callPOST(ctx, "CreateTweet", variables)
	if err != nil {
		return nil, err
	}
	var resp CreateTweetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError(ErrUpstream, err, "malformed create tweet payload")
	}
	tweet, ok := normalizeTweetResult(resp.Data.CreateTweet.TweetResults.Result, 0, normalizeOptions{})
	if !ok {
		return nil, newError(ErrUpstream, "create tweet response carried no tweet")
	}
	return &PostResult{ID: tweet.ID, Text: tweet.Text}, nil
}

// createTweetV2 posts through the generic v2 REST endpoint, which does not
// need a query id at all.
func (c *Client) createTweetV2(ctx context.Context, text string, opts PostOptions) (*PostResult, error) {
	payload := map[string]any{"text": text}
	if opts.InReplyTo != "" {
		payload["reply"] = map[string]any{"in_reply_to_tweet_id": opts.InReplyTo}
	}
	if len(opts.MediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": opts.MediaIDs}
	}
	bodyBz, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.opts.APIBase+"/i/api/2/tweets", bytes.NewReader(bodyBz))
	if err != nil {
		return nil, err
	}
	status, _, body, err := c.do(req)
	if err != nil {
		return nil, wrapError(ErrUpstream, err, "request failed")
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &StatusError{StatusCode: status, Body: string(body)}
	}

	var resp struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError(ErrUpstream, err, "malformed v2 post payload")
	}
	if resp.Data.ID == "" {
		return nil, newError(ErrUpstream, "v2 post response carried no tweet id")
	}
	return &PostResult{ID: resp.Data.ID, Text: resp.Data.Text}, nil
}

// createTweetLegacy posts through the legacy form-encoded status endpoint.
func (c *Client) createTweetLegacy(ctx context.Context, text string, opts PostOptions) (*PostResult, error) {
	form := url.Values{}
	form.Set("status", text)
	if opts.InReplyTo != "" {
		form.Set("in_reply_to_status_id", opts.InReplyTo)
		form.Set("auto_populate_reply_metadata", "true")
	}
	if len(opts.MediaIDs) > 0 {
		form.Set("media_ids", strings.Join(opts.MediaIDs, ","))
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.opts.APIBase+"/i/api/1.1/statuses/update.json", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, _, body, err := c.do(req)
	if err != nil {
		return nil, wrapError(ErrUpstream, err, "request failed")
	}
	if status != http.StatusOK {
		return nil, &StatusError{StatusCode: status, Body: string(body)}
	}

	var resp struct {
		IDStr    string `json:"id_str"`
		FullText string `json:"full_text"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError(ErrUpstream, err, "malformed legacy post payload")
	}
	if resp.IDStr == "" {
		return nil, newError(ErrUpstream, "legacy post response carried no tweet id")
	}
	postedText := resp.FullText
	if postedText == "" {
		postedText = resp.Text
	}
	return &PostResult{ID: resp.IDStr, Text: postedText}, nil
}

// DeleteTweet removes a tweet by id.
func (c *Client) DeleteTweet(ctx context.Context, tweetID string) error {
	body, err := c.callPOST(ctx, "DeleteTweet", map[string]any{
		"tweet_id":     tweetID,
		"dark_request": false,
	})
	if err != nil {
		return err
	}
	var resp DeleteTweetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return wrapError(ErrUpstream, err, "malformed delete payload")
	}
	return nil
}

const uploadChunkSize = 4 * 1024 * 1024

// UploadMedia pushes a media blob through the chunked upload protocol:
// INIT, base64 APPENDs, FINALIZE, then STATUS polling while the server
// processes, honoring its requested poll intervals.
func (c *Client) UploadMedia(ctx context.Context, data []byte, contentType string) (*MediaUploadResult, error) {
	mediaID, err := c.mediaInit(ctx, len(data), contentType)
	if err != nil {
		return nil, err
	}

	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+uploadChunkSize {
		end := offset + uploadChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := c.mediaAppend(ctx, mediaID, segment, data[offset:end]); err != nil {
			return nil, err
		}
	}

	processing, err := c.mediaFinalize(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	for processing > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(processing):
		}
		processing, err = c.mediaStatus(ctx, mediaID)
		if err != nil {
			return nil, err
		}
	}

	return &MediaUploadResult{MediaID: mediaID, Size: int64(len(data))}, nil
}

type mediaUploadResponse struct {
	MediaIDString  string `json:"media_id_string"`
	ProcessingInfo *struct {
		State          string `json:"state"`
		CheckAfterSecs int    `json:"check_after_secs"`
		Error          *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"processing_info"`
}

func (c *Client) uploadForm(ctx context.Context, form url.Values) (*mediaUploadResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost,
		c.opts.UploadBase+"/i/media/upload.json", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, _, body, err := c.do(req)
	if err != nil {
		return nil, wrapError(ErrUpstream, err, "request failed")
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{StatusCode: status, Body: string(body)}
	}
	resp := &mediaUploadResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, resp); err != nil {
			return nil, wrapError(ErrUpstream, err, "malformed upload payload")
		}
	}
	return resp, nil
}

func (c *Client) mediaInit(ctx context.Context, size int, contentType string) (string, error) {
	form := url.Values{}
	form.Set("command", "INIT")
	form.Set("total_bytes", fmt.Sprintf("%d", size))
	form.Set("media_type", contentType)
	resp, err := c.uploadForm(ctx, form)
	if err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", newError(ErrUpstream, "upload init returned no media id")
	}
	return resp.MediaIDString, nil
}

func (c *Client) mediaAppend(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	form := url.Values{}
	form.Set("command", "APPEND")
	form.Set("media_id", mediaID)
	form.Set("segment_index", fmt.Sprintf("%d", segment))
	form.Set("media_data", base64.StdEncoding.EncodeToString(chunk))
	_, err := c.uploadForm(ctx, form)
	return err
}

// mediaFinalize returns the delay to wait before polling STATUS, zero when
// the media is already usable.
func (c *Client) mediaFinalize(ctx context.Context, mediaID string) (time.Duration, error) {
	form := url.Values{}
	form.Set("command", "FINALIZE")
	form.Set("media_id", mediaID)
	resp, err := c.uploadForm(ctx, form)
	if err != nil {
		return 0, err
	}
	return processingDelay(resp)
}

func (c *Client) mediaStatus(ctx context.Context, mediaID string) (time.Duration, error) {
	form := url.Values{}
	form.Set("command", "STATUS")
	form.Set("media_id", mediaID)
	resp, err := c.uploadForm(ctx, form)
	if err != nil {
		return 0, err
	}
	return processingDelay(resp)
}

func processingDelay(resp *mediaUploadResponse) (time.Duration, error) {
	info := resp.ProcessingInfo
	if info == nil || info.State == "succeeded" {
		return 0, nil
	}
	if info.State == "failed" {
		msg := "media processing failed"
		if info.Error != nil && info.Error.Message != "" {
			msg = info.Error.Message
		}
		return 0, newError(ErrUpstream, "%s", msg)
	}
	delay := time.Duration(info.CheckAfterSecs) * time.Second
	if delay <= 0 {
		delay = time.Second
	}
	return delay, nil
}
