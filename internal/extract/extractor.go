// File: internal/extract/extractor.go
package extract

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// RawItem is the untyped payload the in-page harvest script produces for one
// rendered feed item. All metric fields arrive as display text ("1.2K").
type RawItem struct {
	ID           string   `json:"id"`
	AuthorHandle string   `json:"authorHandle"`
	AuthorName   string   `json:"authorName"`
	Text         string   `json:"text"`
	Timestamp    string   `json:"timestamp"`
	Media        []string `json:"media"`
	Likes        string   `json:"likes"`
	Reshares     string   `json:"reshares"`
	Quotes       string   `json:"quotes"`
	Replies      string   `json:"replies"`
	Impressions  string   `json:"impressions"`
	Bookmarks    string   `json:"bookmarks"`
	Promoted     bool     `json:"promoted"`
	URL          string   `json:"url"`

	// OuterHTML is the item's serialized markup, used for the parent-comment
	// lookup on comment items. Empty for posts and profiles.
	OuterHTML string `json:"outerHtml,omitempty"`
}

// FromRaw maps a harvested item to a Record of the given kind. It returns nil
// for promoted items (checked before any field work) and for items without an
// identity. Every other field degrades independently: a missing timestamp or
// unparsable metric leaves its zero value, the record survives.
func FromRaw(raw RawItem, kind Kind) *Record {
	if raw.Promoted {
		return nil
	}
	if raw.ID == "" {
		return nil
	}

	rec := &Record{
		Kind: kind,
		ID:   raw.ID,
		Author: Author{
			Handle:      strings.TrimPrefix(raw.AuthorHandle, "@"),
			DisplayName: raw.AuthorName,
		},
		Text:  raw.Text,
		Media: raw.Media,
		URL:   raw.URL,
		Metrics: Metrics{
			Likes:       ParseMetric(raw.Likes),
			Reshares:    ParseMetric(raw.Reshares),
			Quotes:      ParseMetric(raw.Quotes),
			Replies:     ParseMetric(raw.Replies),
			Impressions: ParseMetric(raw.Impressions),
			Bookmarks:   ParseMetric(raw.Bookmarks),
		},
	}

	if raw.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
			rec.Timestamp = ts
		}
	}

	if kind == KindComment {
		rec.ParentID = parentStatusID(raw.OuterHTML, raw.ID)
	}

	return rec
}

var statusPathRe = regexp.MustCompile(`/status/(\d+)`)

// parentStatusID scans the item's markup for status links and returns the
// first id that differs from the item's own. This mirrors how the thread UI
// renders the replied-to status above a reply; in deeply nested threads the
// first differing link may belong to an ancestor rather than the direct
// parent.
func parentStatusID(outerHTML, ownID string) string {
	if outerHTML == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(outerHTML))
	if err != nil {
		return ""
	}

	var walk func(*html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if m := statusPathRe.FindStringSubmatch(attr.Val); m != nil && m[1] != ownID {
					return m[1]
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if id := walk(c); id != "" {
				return id
			}
		}
		return ""
	}
	return walk(doc)
}

// RawProfile is the harvest payload for a profile page.
type RawProfile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	Followers   string `json:"followers"`
	Following   string `json:"following"`
	URL         string `json:"url"`
}

// FromRawProfile maps a harvested profile to a Record. The handle is the
// profile's identity; without one the profile is unusable and nil is
// returned.
func FromRawProfile(raw RawProfile) *Record {
	handle := strings.TrimPrefix(strings.TrimSpace(raw.Handle), "@")
	if handle == "" {
		return nil
	}
	return &Record{
		Kind: KindProfile,
		ID:   handle,
		Author: Author{
			Handle:      handle,
			DisplayName: raw.DisplayName,
		},
		Bio:       raw.Bio,
		URL:       raw.URL,
		Followers: ParseMetric(raw.Followers),
		Following: ParseMetric(raw.Following),
	}
}
