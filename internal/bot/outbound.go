package bot

import "context"

// Button is one tap target on an interactive reply.
type Button struct {
	Label string
	Data  string
}

// Message is a chat-platform-agnostic outbound message. Rows of buttons map
// onto whatever inline keyboard the transport supports.
type Message struct {
	Text     string
	Buttons  [][]Button
	Markdown bool
}

// Outbound sends messages back to a chat. Send returns the platform message
// id so result listings can later be edited in place.
type Outbound interface {
	Send(ctx context.Context, chatID int64, msg Message) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, msg Message) error
}
