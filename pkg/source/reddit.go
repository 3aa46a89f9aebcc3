package source

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"describer/internal/httpclient"
	"describer/pkg/config"
	"describer/pkg/models"
)

// listing is the subset of a reddit listing response the bot reads
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Name      string `json:"name"`
				Title     string `json:"title"`
				URL       string `json:"url"`
				Permalink string `json:"permalink"`
				Over18    bool   `json:"over_18"`
				IsVideo   bool   `json:"is_video"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Reddit lists the posts of a subreddit listing (top by default)
type Reddit struct {
	client    *httpclient.Client
	baseURL   string
	subreddit string
	listing   string
}

// NewReddit creates a reddit source. The client should carry the bot's User-Agent.
func NewReddit(cfg config.RedditConfig, client *httpclient.Client) *Reddit {
	listingName := cfg.Listing
	if listingName == "" {
		listingName = "top"
	}
	return &Reddit{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		subreddit: cfg.Subreddit,
		listing:   listingName,
	}
}

func (r *Reddit) Name() string { return config.SourceReddit }

// ListingURL returns the JSON listing URL
func (r *Reddit) ListingURL() string {
	return fmt.Sprintf("%s/r/%s/%s.json", r.baseURL, url.PathEscape(r.subreddit), r.listing)
}

// NextBatch returns the listing's posts in listing order. Videos and NSFW
// posts are dropped here; extension and history filtering is left to Filter.
func (r *Reddit) NextBatch(ctx context.Context) ([]models.Candidate, error) {
	var resp listing
	if err := r.client.GetJSON(ctx, r.ListingURL(), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s: %w", r.subreddit, err)
	}

	out := make([]models.Candidate, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		post := child.Data
		if post.Name == "" || post.URL == "" || post.IsVideo || post.Over18 {
			continue
		}
		c := models.Candidate{
			ID:      post.Name,
			Locator: html.UnescapeString(post.URL),
			Title:   html.UnescapeString(post.Title),
			Source:  r.Name(),
		}
		if post.Permalink != "" {
			c.PostURL = r.baseURL + post.Permalink
		}
		out = append(out, c)
	}
	return out, nil
}
