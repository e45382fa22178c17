package transport

import "context"

// Message is an inbound chat message (commands only).
type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Silent         bool
}

// Sender delivers text to a chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Adapter is a running chat transport.
type Adapter interface {
	Sender
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Command is one bot command with its handler. The reply is sent back to the
// chat the command came from.
type Command struct {
	Name        string
	Description string
	Handle      func(ctx context.Context, m Message) (string, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}
