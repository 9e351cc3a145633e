// File: internal/extract/records.go

// Package extract maps rendered feed items to structured records. The mapping
// is pure: the same raw item always yields the same record, and an item
// without a parseable identity yields nil rather than an error.
package extract

import "time"

// Kind discriminates the record variants.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindProfile Kind = "profile"
)

// Author identifies the account a record belongs to.
type Author struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

// Metrics is the engagement bundle attached to a post or comment.
type Metrics struct {
	Likes       int `json:"likes"`
	Reshares    int `json:"reshares"`
	Quotes      int `json:"quotes"`
	Replies     int `json:"replies"`
	Impressions int `json:"impressions"`
	Bookmarks   int `json:"bookmarks"`
}

// EngagementRate derives the engagement percentage. Zero impressions means an
// undefined denominator and yields 0 rather than a division error.
func (m Metrics) EngagementRate() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Likes+m.Reshares+m.Replies) / float64(m.Impressions) * 100
}

// Record is one extracted item. ID is the site-assigned identity used for
// deduplication. ParentID is only set for comments, the profile fields only
// for profiles; records are immutable once produced.
type Record struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Media     []string  `json:"media,omitempty"`
	Metrics   Metrics   `json:"metrics"`
	URL       string    `json:"url,omitempty"`

	// ParentID is the identity of the status a comment replies to, when it
	// could be determined.
	ParentID string `json:"parent_id,omitempty"`

	// Profile fields.
	Bio       string `json:"bio,omitempty"`
	Followers int    `json:"followers,omitempty"`
	Following int    `json:"following,omitempty"`
}
