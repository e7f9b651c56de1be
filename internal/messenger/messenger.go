// Package messenger defines the outbound delivery boundary. The chat
// platform client is an external collaborator; implementations adapt it to
// this contract.
package messenger

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
)

// Media describes one file to hand to a chat
type Media struct {
	ChatID        string
	FilePath      string
	Filename      string
	Caption       string
	ThumbnailPath string
}

// Messenger sends media and plain texts to chats. SendMedia returns an
// opaque reference to the sent message for the delivery record.
type Messenger interface {
	SendMedia(ctx context.Context, media Media) (string, error)
	SendText(ctx context.Context, chatID, text string) error
}

// LogMessenger is a stand-in transport that records sends to the log. Used
// in development and wherever no chat platform is attached.
type LogMessenger struct {
	seq atomic.Int64
}

// NewLogMessenger creates a new log-backed messenger
func NewLogMessenger() *LogMessenger {
	return &LogMessenger{}
}

func (m *LogMessenger) SendMedia(ctx context.Context, media Media) (string, error) {
	ref := fmt.Sprintf("log-%d", m.seq.Add(1))
	log.Printf("messenger: media sent, chat_id=%s, file=%s, ref=%s", media.ChatID, media.Filename, ref)
	return ref, nil
}

func (m *LogMessenger) SendText(ctx context.Context, chatID, text string) error {
	log.Printf("messenger: text sent, chat_id=%s, text=%q", chatID, text)
	return nil
}
