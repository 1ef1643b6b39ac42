package model

import "time"

// Schedule is the backing record a module evaluates for due items
type Schedule struct {
	ID           string            `json:"id" validate:"required"`
	UserID       string            `json:"userId" validate:"required"`
	DisplayName  string            `json:"displayName"`
	AccountRef   string            `json:"accountRef" validate:"required"`
	PostingTimes []string          `json:"postingTimes" validate:"required,min=1,dive,hhmm"`
	Enabled      bool              `json:"enabled"`
	Category     string            `json:"category,omitempty"`
	Style        string            `json:"style,omitempty"`
	Topic        string            `json:"topic,omitempty"`
	Prompt       string            `json:"prompt,omitempty"`
	Hashtags     []string          `json:"hashtags,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// PostsAt reports whether the schedule's posting times contain bucket verbatim
func (s *Schedule) PostsAt(bucket string) bool {
	for _, t := range s.PostingTimes {
		if t == bucket {
			return true
		}
	}
	return false
}
