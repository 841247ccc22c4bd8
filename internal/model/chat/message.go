package chat

import (
	"time"

	"github.com/google/uuid"
)

// Origin tells who authored a transcript entry.
type Origin string

const (
	OriginUser Origin = "user"
	OriginBot  Origin = "bot"
)

// Message is one immutable transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError,omitempty"`
	IsTyping  bool      `json:"isTyping,omitempty"`
}

// NewUserMessage builds a message authored by the widget user.
func NewUserMessage(text string) Message {
	return newMessage(text, OriginUser, false)
}

// NewBotMessage builds a reply shown on the bot side.
func NewBotMessage(text string) Message {
	return newMessage(text, OriginBot, false)
}

// NewErrorMessage builds a bot-side message flagged as an error.
func NewErrorMessage(text string) Message {
	return newMessage(text, OriginBot, true)
}

// NewTypingMessage builds the transient "bot is typing" placeholder. It is
// published to listeners but never appended to a transcript.
func NewTypingMessage() Message {
	msg := newMessage("", OriginBot, false)
	msg.IsTyping = true
	return msg
}

func newMessage(text string, origin Origin, isError bool) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
		IsError:   isError,
	}
}
