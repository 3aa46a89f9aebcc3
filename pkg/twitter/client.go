// Package twitter is a minimal client for the social API the bots post to:
// credential checks, media upload, status updates and timeline reads, signed
// with OAuth 1.0a user credentials.
package twitter

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"describer/internal/httpclient"
	"describer/pkg/config"
	"describer/pkg/logger"
	"describer/pkg/models"
)

// MaxTimelinePage is the largest page user_timeline serves
const MaxTimelinePage = 200

// Client talks to the v1.1 REST and upload endpoints
type Client struct {
	http               *httpclient.Client
	apiBaseURL         string
	uploadBaseURL      string
	displayCoordinates bool
	logger             logger.Logger
}

// NewClient signs every request with the credentials in cfg. Extra options
// (limiter, attempts) are passed to the underlying HTTP client.
func NewClient(ctx context.Context, cfg config.TwitterConfig, timeout time.Duration, log logger.Logger, opts ...httpclient.Option) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}

	oauthConfig := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	base := &http.Client{Timeout: timeout}
	signed := oauthConfig.Client(context.WithValue(ctx, oauth1.HTTPClient, base), token)
	signed.Timeout = timeout

	opts = append([]httpclient.Option{httpclient.WithHTTPClient(signed)}, opts...)

	return &Client{
		http:               httpclient.New("twitter", timeout, log, opts...),
		apiBaseURL:         strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadBaseURL:      strings.TrimRight(cfg.UploadBaseURL, "/"),
		displayCoordinates: cfg.DisplayCoordinates,
		logger:             log.WithField("component", "twitter"),
	}
}

// VerifyCredentials returns the account the credentials belong to
func (c *Client) VerifyCredentials(ctx context.Context) (*User, error) {
	var user User
	if err := c.http.GetJSON(ctx, c.apiBaseURL+"/account/verify_credentials.json", &user); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &user, nil
}

// GetUser looks up a user by screen name
func (c *Client) GetUser(ctx context.Context, screenName string) (*User, error) {
	params := url.Values{}
	params.Set("screen_name", screenName)

	var user User
	if err := c.http.GetJSON(ctx, c.apiBaseURL+"/users/show.json?"+params.Encode(), &user); err != nil {
		return nil, fmt.Errorf("get user %s: %w", screenName, err)
	}
	return &user, nil
}

// GetUserTimeline returns up to count tweets of screenName. maxID > 0 pages
// backwards from that id (inclusive).
func (c *Client) GetUserTimeline(ctx context.Context, screenName string, count int, maxID int64) ([]Tweet, error) {
	if count <= 0 || count > MaxTimelinePage {
		count = MaxTimelinePage
	}

	params := url.Values{}
	params.Set("screen_name", screenName)
	params.Set("count", strconv.Itoa(count))
	params.Set("include_rts", "false")
	params.Set("tweet_mode", "extended")
	if maxID > 0 {
		params.Set("max_id", strconv.FormatInt(maxID, 10))
	}

	var tweets []Tweet
	if err := c.http.GetJSON(ctx, c.apiBaseURL+"/statuses/user_timeline.json?"+params.Encode(), &tweets); err != nil {
		return nil, fmt.Errorf("timeline %s: %w", screenName, err)
	}
	return tweets, nil
}

// UploadMedia uploads an image and returns its media id
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	payload := body.Bytes()

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBaseURL+"/media/upload.json", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	var out mediaUploadResponse
	if err := c.http.DecodeJSON(resp, &out); err != nil {
		return "", err
	}
	if out.MediaIDString == "" && out.MediaID != 0 {
		out.MediaIDString = strconv.FormatInt(out.MediaID, 10)
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("upload media: response has no media id")
	}

	c.logger.DebugWithFields("media uploaded", map[string]interface{}{
		"media_id": out.MediaIDString,
		"bytes":    len(data),
	})
	return out.MediaIDString, nil
}

// Update is a status to post
type Update struct {
	Status   string
	MediaIDs []string
	Location *models.Location
}

// PostUpdate posts a status. Coordinates are only sent when a location is set.
func (c *Client) PostUpdate(ctx context.Context, u Update) (*Tweet, error) {
	form := url.Values{}
	form.Set("status", u.Status)
	if len(u.MediaIDs) > 0 {
		form.Set("media_ids", strings.Join(u.MediaIDs, ","))
	}
	if u.Location != nil {
		form.Set("lat", strconv.FormatFloat(u.Location.Latitude, 'f', -1, 64))
		form.Set("long", strconv.FormatFloat(u.Location.Longitude, 'f', -1, 64))
		form.Set("display_coordinates", strconv.FormatBool(c.displayCoordinates))
	}
	encoded := form.Encode()

	// a retried status update can post twice
	resp, err := c.http.DoOnce(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/statuses/update.json", strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("post update: %w", err)
	}
	defer resp.Body.Close()

	var tweet Tweet
	if err := c.http.DecodeJSON(resp, &tweet); err != nil {
		return nil, err
	}
	return &tweet, nil
}
