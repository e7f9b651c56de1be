package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/urlutil"
)

// MockEngine is a stand-in extraction engine used when MOCK_DOWNLOADS is
// enabled. It writes a small placeholder file instead of fetching anything.
type MockEngine struct{}

// NewMockEngine creates a new mock engine
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Fetch returns fixed metadata derived from the URL
func (e *MockEngine) Fetch(_ context.Context, req Request) (*Metadata, error) {
	return &Metadata{
		Title:    urlutil.FilenameFromPath(req.URL),
		FileSize: 16,
	}, nil
}

// Download writes a placeholder artifact into the target directory
func (e *MockEngine) Download(_ context.Context, req Request) (*Result, error) {
	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target dir: %w", err)
	}

	ext := "mp4"
	if req.JobType == models.TypeAudio {
		ext = "m4a"
	}
	path := filepath.Join(req.TargetDir, "mock."+ext)
	if err := os.WriteFile(path, []byte("mock media data\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write mock file: %w", err)
	}

	if req.Progress != nil {
		req.Progress(0, 0, 16, 0)
		req.Progress(100, 16, 16, 16)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat mock file: %w", err)
	}
	return &Result{
		FilePath: path,
		Title:    urlutil.FilenameFromPath(req.URL),
		FileSize: info.Size(),
	}, nil
}
