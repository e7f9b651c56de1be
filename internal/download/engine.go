// Package download defines the boundary to the external media-extraction
// capability. The engine itself is an external collaborator; this package
// specifies its contract and classifies its failures.
package download

import (
	"context"
	"fmt"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// Error is a classified extraction failure
type Error struct {
	Type       models.ErrorType
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (http %d): %s", e.Type, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError builds a classified extraction error
func NewError(errType models.ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// ProgressFunc receives transfer progress. Percent is in [0,100]; total may
// be zero when the source does not report a size.
type ProgressFunc func(percent float64, downloaded, total int64, speedBPS float64)

// Request describes one extraction call
type Request struct {
	URL              string
	JobType          models.JobType
	RequestedQuality string
	TargetDir        string
	CookieFile       string
	MaxFileSizeBytes int64
	Progress         ProgressFunc
}

// Metadata is the result of a metadata-only fetch
type Metadata struct {
	Title        string
	DurationSec  float64
	FileSize     int64
	ThumbnailURL string
}

// Result is the outcome of a completed download
type Result struct {
	FilePath      string
	Title         string
	ThumbnailPath string
	FileSize      int64
}

// Engine is the external extraction capability. Implementations must return
// *Error for classifiable failures; anything else is treated as internal.
type Engine interface {
	Fetch(ctx context.Context, req Request) (*Metadata, error)
	Download(ctx context.Context, req Request) (*Result, error)
}
