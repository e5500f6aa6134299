package model

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in a conversation. Messages are immutable once
// created: they are appended to a session and never edited or removed.
type Message struct {
	ID            string        `json:"id"`
	Sender        Sender        `json:"sender"`
	Text          string        `json:"text"`
	Chart         *ChartPayload `json:"chart_data,omitempty"`
	TickerMention string        `json:"ticker_mention,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    SenderUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    SenderAssistant,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// HasTicker reports whether this message should drive a realtime
// intraday subscription.
func (m Message) HasTicker() bool { return m.TickerMention != "" }
