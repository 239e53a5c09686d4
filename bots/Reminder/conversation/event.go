package conversation

import "context"

// Event is an inbound user action. The set of events is closed: TextEvent and
// CallbackEvent.
type Event interface {
	sender() int64
	chat() int64
}

// TextEvent is a plain message or a command.
type TextEvent struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
}

func (e TextEvent) sender() int64 { return e.UserID }
func (e TextEvent) chat() int64   { return e.ChatID }

// CallbackEvent is a press on an inline keyboard button.
type CallbackEvent struct {
	UserID     int64
	ChatID     int64
	MessageID  int
	Data       string
	CallbackID string
}

func (e CallbackEvent) sender() int64 { return e.UserID }
func (e CallbackEvent) chat() int64   { return e.ChatID }

type Button struct {
	Label string
	Data  string
}

// Reply is an outbound message. Buttons are rows of inline keyboard buttons.
type Reply struct {
	ChatID  int64
	ReplyTo int // 0 if the message isn't a reply
	Text    string
	Buttons [][]Button
}

// Sender delivers replies to users.
type Sender interface {
	Send(ctx context.Context, r Reply) error
}
