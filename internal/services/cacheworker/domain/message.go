package domain

import (
	"encoding/json"
	"strings"
)

// MessageSkipWaiting asks a waiting worker to activate now.
const MessageSkipWaiting = "SKIP_WAITING"

// Message is a control message posted by a page.
type Message struct {
	Type string `json:"type"`
}

// ParseMessage decodes data and reports whether it is an accepted control
// message. Anything else is ignored.
func ParseMessage(data []byte) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, false
	}
	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type != MessageSkipWaiting {
		return Message{}, false
	}
	return msg, true
}
