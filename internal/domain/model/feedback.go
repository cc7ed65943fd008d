package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxCommentLen = 2000

// Feedback is a stored user comment. Comment is stored HTML-escaped.
type Feedback struct {
	ID        int64     `json:"id"         db:"id"`
	Username  string    `json:"user"       db:"username"`
	Comment   string    `json:"comment"    db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FeedbackRequest is the body of a feedback submission.
type FeedbackRequest struct {
	Comment string `json:"comment"`
}

// Validate validates FeedbackRequest.
func (r *FeedbackRequest) Validate() error {
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Comment == "" {
		return errors.New("comment is required")
	}
	if utf8.RuneCountInString(r.Comment) > maxCommentLen {
		return errors.New("comment cannot exceed 2000 characters")
	}
	return nil
}
