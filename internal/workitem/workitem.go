// Package workitem defines the structured work-item record produced by
// generation and consumed by submission, along with the response schema
// handed to the generative backend.
package workitem

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yuripa07/itemsmith/internal/errors"
)

// Canonical work-item kinds offered by the UI. The kind field itself is a
// free string: on-premise tracker processes define their own type sets.
const (
	KindTask      = "Task"
	KindBug       = "Bug"
	KindUserStory = "User Story"
	KindFeature   = "Feature"
)

// CanonicalKinds lists the kinds offered in the UI picker, in display order.
var CanonicalKinds = []string{KindTask, KindBug, KindUserStory, KindFeature}

// Record is one structured work item.
type Record struct {
	// ID is a ULID assigned when the record enters the working set.
	// It identifies the record for edit and submission, and is never
	// sent to either backend.
	ID string `json:"id"`

	// Title is a concise, descriptive title. Required, non-empty after trim.
	Title string `json:"title"`

	// Kind names the work-item type (e.g. "Task", "Bug").
	Kind string `json:"kind"`

	// Description is a markdown-formatted body. May be empty.
	Description string `json:"description"`

	// Tags is an ordered list of categorization tags. May be empty.
	Tags []string `json:"tags"`
}

// Validate checks a record after user edits.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.NewInvalidRequest("title is required")
	}
	if strings.TrimSpace(r.Kind) == "" {
		return errors.NewInvalidRequest("kind is required")
	}
	return nil
}

// generatedItem is the wire shape of one element in the backend reply.
type generatedItem struct {
	Title       string   `json:"title"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// DecodeRecords parses and validates a generative-backend reply.
// The reply is accepted only if it is a JSON array and every element
// carries a non-empty title and kind; anything else is an
// UNEXPECTED_FORMAT error with no partial results. Element order is
// preserved and each record receives a fresh ULID.
func DecodeRecords(data []byte) ([]Record, error) {
	// A top-level null also unmarshals cleanly into a slice; only an
	// actual array is an acceptable reply.
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.NewUnexpectedFormat("reply is not a JSON array of work items")
	}

	var items []generatedItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errors.NewUnexpectedFormat("reply is not a JSON array of work items")
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Kind) == "" {
			return nil, errors.NewUnexpectedFormat("work item is missing title or kind")
		}
		records = append(records, Record{
			ID:          NewID(),
			Title:       item.Title,
			Kind:        item.Kind,
			Description: item.Description,
			Tags:        item.Tags,
		})
	}

	return records, nil
}

// NewID generates a ULID for record identity within the working set.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// ParseTags splits a comma-separated tag edit into a trimmed ordered list.
// Empty entries are dropped.
func ParseTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// JoinTags renders tags back into the comma-separated form used by the
// per-record edit field.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
