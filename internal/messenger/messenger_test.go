package messenger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMessenger_SendMedia(t *testing.T) {
	m := NewLogMessenger()
	ctx := context.Background()

	first, err := m.SendMedia(ctx, Media{ChatID: "chat-1", Filename: "a.mp3"})
	require.NoError(t, err)
	second, err := m.SendMedia(ctx, Media{ChatID: "chat-1", Filename: "b.mp3"})
	require.NoError(t, err)

	assert.Equal(t, "log-1", first)
	assert.Equal(t, "log-2", second)
}

func TestLogMessenger_ConcurrentRefsUnique(t *testing.T) {
	m := NewLogMessenger()
	ctx := context.Background()

	const sends = 50
	refs := make(chan string, sends)

	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := m.SendMedia(ctx, Media{ChatID: "chat-1"})
			assert.NoError(t, err)
			refs <- ref
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[string]bool)
	for ref := range refs {
		assert.False(t, seen[ref], "duplicate ref %s", ref)
		seen[ref] = true
	}
	assert.Len(t, seen, sends)
}
