package domain

import "strings"

// Post is an immutable snapshot of a video post from the content API.
// A snapshot is taken per index build; the core never mutates it.
type Post struct {
	ID          int64
	Title       string
	Tags        []string
	Category    string
	Topic       string
	ProjectCode string
	ViewCount   int64
}

// ContentText flattens the post's text fields into the single string that
// gets embedded: title, tags, category name, topic name, space-joined.
// Empty and whitespace-only fields are skipped so the result never carries
// stray separators.
func (p Post) ContentText() string {
	parts := make([]string, 0, 3+len(p.Tags))

	appendPart := func(s string) {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}

	appendPart(p.Title)
	for _, tag := range p.Tags {
		appendPart(tag)
	}
	appendPart(p.Category)
	appendPart(p.Topic)

	return strings.Join(parts, " ")
}
