package flic

import (
	"encoding/json"
	"strings"

	"github.com/vibeflow/feedrank/internal/domain"
)

// flexTags accepts tags as either a JSON array of strings or a single
// string. Both forms normalize to the same space-joined content text.
type flexTags []string

func (t *flexTags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*t = nil
		return nil
	}
	*t = []string{s}
	return nil
}

// flexName accepts a structured record with a "name" field or a bare string.
type flexName struct {
	Name        string
	ProjectCode string
}

func (n *flexName) UnmarshalJSON(data []byte) error {
	var obj struct {
		Name        string `json:"name"`
		ProjectCode string `json:"project_code"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		n.Name = obj.Name
		n.ProjectCode = obj.ProjectCode
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Name = s
	return nil
}

// postDTO mirrors a post record in the upstream summary response.
type postDTO struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Tags      flexTags `json:"tags"`
	Category  flexName `json:"category"`
	Topic     flexName `json:"topic"`
	ViewCount int64    `json:"view_count"`
}

func (p postDTO) toDomain() domain.Post {
	return domain.Post{
		ID:          p.ID,
		Title:       p.Title,
		Tags:        p.Tags,
		Category:    p.Category.Name,
		Topic:       p.Topic.Name,
		ProjectCode: p.Topic.ProjectCode,
		ViewCount:   p.ViewCount,
	}
}

// postsResponse is the envelope shared by the summary and interaction endpoints.
type postsResponse struct {
	Posts []json.RawMessage `json:"posts"`
}

// interactionPostDTO is the slice of an interaction-list post the client needs.
type interactionPostDTO struct {
	ID            int64   `json:"id"`
	AverageRating float64 `json:"average_rating"`
}
