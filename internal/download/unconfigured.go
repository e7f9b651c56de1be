package download

import (
	"context"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// UnconfiguredEngine fails every request. It stands in when no extraction
// engine is attached, so jobs settle as failed instead of hanging.
type UnconfiguredEngine struct{}

func (UnconfiguredEngine) Fetch(ctx context.Context, req Request) (*Metadata, error) {
	return nil, NewError(models.ErrExtractor, "no extraction engine attached")
}

func (UnconfiguredEngine) Download(ctx context.Context, req Request) (*Result, error) {
	return nil, NewError(models.ErrExtractor, "no extraction engine attached")
}
