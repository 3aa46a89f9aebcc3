package models

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// Candidate is a reference to a possible image before it is fetched.
// ID is the dedup key recorded in the history ledger; Locator is a URL or a
// file path depending on the source.
type Candidate struct {
	ID      string `json:"id"`
	Locator string `json:"locator"`
	Title   string `json:"title,omitempty"`
	Source  string `json:"source"`
	// PostURL links back to where the image was found, if anywhere
	PostURL string `json:"post_url,omitempty"`
}

// Extension returns the lowercased file extension of the locator without the dot.
// An "fm" query parameter (unsplash) wins over the path extension.
func (c Candidate) Extension() string {
	u, err := url.Parse(c.Locator)
	if err != nil {
		return strings.ToLower(strings.TrimPrefix(path.Ext(c.Locator), "."))
	}
	if fm := u.Query().Get("fm"); fm != "" {
		return strings.ToLower(fm)
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}

// Artifact is the materialized bytes of a candidate
type Artifact struct {
	CandidateID string `json:"candidate_id"`
	Data        []byte `json:"-"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	// Format is the encoder name reported by image.Decode ("jpeg", "png", ...)
	Format string `json:"format"`
}

// Size is the byte length of the artifact
func (a *Artifact) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// MIMEType maps Format to a content type for uploads
func (a *Artifact) MIMEType() string {
	switch a.Format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// Location is a geocoded place attached to a post
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"long"`
}

// PublishedRecord describes one externally visible post
type PublishedRecord struct {
	CandidateID string    `json:"candidate_id"`
	StatusID    string    `json:"status_id"`
	Text        string    `json:"text"`
	MediaID     string    `json:"media_id,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Attempts    int       `json:"attempts"`
	Bytes       int64     `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
	DryRun      bool      `json:"dry_run,omitempty"`
}
