// Package stability provides an HTTP client for the Stability AI image-to-video API.
package stability

import (
	"fmt"
	"strings"
)

// GenerationIDLength is the exact length of a generation ID issued by the API.
const GenerationIDLength = 64

// Status represents the state of a generation as observed by polling.
type Status string

// Generation states reported by the result endpoint.
const (
	StatusInProgress Status = "in-progress" // HTTP 202
	StatusComplete   Status = "complete"    // HTTP 200 with the video body
	StatusFailed     Status = "failed"      // any other HTTP status
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

// ValidGenerationID reports whether id has the shape of a generation ID.
func ValidGenerationID(id string) bool {
	return len(id) == GenerationIDLength
}

// SubmitOptions contains the generation parameters sent with the image.
type SubmitOptions struct {
	Seed           int64   `validate:"min=0,max=4294967294"` // 0 lets the service pick a random seed
	CfgScale       float64 `validate:"min=0,max=10"`         // How strongly the video sticks to the image
	MotionBucketID int     `validate:"min=1,max=255"`        // Amount of motion in the output
}

// DefaultSubmitOptions returns the default options for submitting a generation.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Seed:           0,
		CfgScale:       1.8,
		MotionBucketID: 127,
	}
}

// submitResponse represents the response from the image-to-video endpoint.
type submitResponse struct {
	ID string `json:"id"`
}

// errorResponse is the error payload returned by the API on non-success statuses.
type errorResponse struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
}

// PollResult contains the result of polling a generation.
type PollResult struct {
	Status       Status
	Video        []byte // Response body verbatim (only set when Status is StatusComplete)
	ContentType  string // Content type of Video
	FinishReason string // Value of the finish-reason header, e.g. SUCCESS or CONTENT_FILTERED
	Seed         string // Seed reported by the service
}

// APIError is returned when the API answers with an unexpected HTTP status.
type APIError struct {
	StatusCode int
	Name       string
	Errors     []string
	Body       string
}

func (e *APIError) Error() string {
	if e.Name != "" || len(e.Errors) > 0 {
		return fmt.Sprintf("%s with status %d: %s: %s", ErrRequestFailed, e.StatusCode, e.Name, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("%s with status %d: %s", ErrRequestFailed, e.StatusCode, e.Body)
}

// Unwrap allows errors.Is(err, ErrRequestFailed).
func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}
