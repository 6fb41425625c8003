package hub

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageType is the "type" discriminator clients switch on.
type MessageType string

const (
	MessageTypeWelcome   MessageType = "welcome"
	MessageTypeIssue     MessageType = "issue"
	MessageTypeCommit    MessageType = "commit"
	MessageTypeKeepAlive MessageType = "keepalive"
)

// MessageBuilder assembles a Message. Build assigns an id when none was set.
type MessageBuilder struct {
	message *Message
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{message: &Message{}}
}

func (mb *MessageBuilder) WithID(id string) *MessageBuilder {
	mb.message.ID = id
	return mb
}

func (mb *MessageBuilder) WithType(msgType MessageType) *MessageBuilder {
	mb.message.Type = string(msgType)
	return mb
}

// WithData sets the payload. Clients receive its JSON encoding as the whole message.
func (mb *MessageBuilder) WithData(data any) *MessageBuilder {
	mb.message.Data = data
	return mb
}

func (mb *MessageBuilder) Build() *Message {
	if mb.message.ID == "" {
		mb.message.ID = generateMessageID()
	}
	return mb.message
}

// WelcomeMessage is the greeting every new connection receives before any
// events.
func WelcomeMessage() *Message {
	return NewMessageBuilder().
		WithType(MessageTypeWelcome).
		WithData(map[string]any{
			"type":    string(MessageTypeWelcome),
			"message": "Hello client!",
		}).
		Build()
}

func generateMessageID() string {
	return "msg-" + uuid.NewString()
}

// MessageValidator rejects messages the hub cannot deliver.
type MessageValidator struct{}

func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// Validate checks that a message can be delivered and serializes it.
func (mv *MessageValidator) Validate(message *Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if message.ID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}

	if message.Type == "" {
		return fmt.Errorf("message type cannot be empty")
	}

	if _, err := message.Encode(); err != nil {
		return fmt.Errorf("message data must be JSON serializable: %w", err)
	}

	return nil
}
