// Package poster defines the contract every posting target implements.
package poster

import (
	"context"
	"fmt"
	"time"
)

// Message is the composed update handed to a target.
type Message struct {
	// Text is the full message body for text-based targets.
	Text string
	// The remaining fields let rich targets (embeds, blocks) lay the
	// article out themselves.
	Title     string
	Summary   string
	Link      string
	Author    string
	Published time.Time
}

// Poster submits one message to an external service.
type Poster interface {
	Name() string
	Post(ctx context.Context, m Message) error
}

// Error is a failed submission. The entry stays out of the history store so
// the next scheduled run retries it.
type Error struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("posting to %s: status %d: %s", e.Target, e.StatusCode, e.Body)
}
