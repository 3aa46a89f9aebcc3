package twitter

// User is the subset of a v1.1 user object the bots read
type User struct {
	ID            int64  `json:"id"`
	IDStr         string `json:"id_str"`
	ScreenName    string `json:"screen_name"`
	Name          string `json:"name"`
	StatusesCount int    `json:"statuses_count"`
}

// Media is one attached photo or video
type Media struct {
	ID            int64  `json:"id"`
	IDStr         string `json:"id_str"`
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
}

// Entities holds the media attached to a tweet
type Entities struct {
	Media []Media `json:"media"`
}

// Tweet is the subset of a v1.1 status object the bots read
type Tweet struct {
	ID               int64    `json:"id"`
	IDStr            string   `json:"id_str"`
	Text             string   `json:"text"`
	FullText         string   `json:"full_text"`
	CreatedAt        string   `json:"created_at"`
	User             *User    `json:"user,omitempty"`
	ExtendedEntities Entities `json:"extended_entities"`
}

// Photos returns the photo attachments of t
func (t Tweet) Photos() []Media {
	var out []Media
	for _, m := range t.ExtendedEntities.Media {
		if m.Type == "photo" {
			out = append(out, m)
		}
	}
	return out
}

type mediaUploadResponse struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
	Size          int    `json:"size"`
}
