// Package fipa implements FIPA-ACL style message envelopes for
// inter-node communication.
//
// An envelope carries a performative drawn from a closed set, routing
// fields (sender, receiver, conversation id), an opaque content
// payload, and optional correlation fields (in-reply-to, reply-by
// deadline). Envelopes are validated at construction and are pure
// data: the runner routes and logs them but never interprets content.
package fipa

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Performative identifies the communicative act of a message.
//
// The set is closed: constructing a message with any other value fails
// with ErrInvalidPerformative.
type Performative string

// The supported FIPA-ACL performatives.
const (
	Inform         Performative = "inform"
	Request        Performative = "request"
	Propose        Performative = "propose"
	AcceptProposal Performative = "accept-proposal"
	RejectProposal Performative = "reject-proposal"
	Failure        Performative = "failure"
	Query          Performative = "query"
	NotUnderstood  Performative = "not-understood"
)

// ErrInvalidPerformative is returned when a message is constructed with
// a performative outside the closed enumeration.
var ErrInvalidPerformative = errors.New("invalid performative")

// ErrConversationMismatch is returned when a message's conversation id
// does not match the conversation it is being attached to.
var ErrConversationMismatch = errors.New("conversation id mismatch")

// Valid reports whether p is one of the enumerated performatives.
func (p Performative) Valid() bool {
	switch p {
	case Inform, Request, Propose, AcceptProposal, RejectProposal, Failure, Query, NotUnderstood:
		return true
	}
	return false
}

// Message is a FIPA-ACL compliant envelope.
//
// Content is opaque to the engine; it must be JSON-serializable so that
// messages survive checkpoint round-trips.
type Message struct {
	Performative   Performative   `json:"performative"`
	Sender         string         `json:"sender"`
	Receiver       string         `json:"receiver"`
	Content        any            `json:"content"`
	ConversationID string         `json:"conversation_id"`
	ReplyBy        time.Time      `json:"reply_by,omitempty"`
	InReplyTo      string         `json:"in_reply_to,omitempty"`
	Protocol       string         `json:"protocol"`
	Language       string         `json:"language"`
	MessageID      string         `json:"message_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Option customizes an envelope at construction time.
type Option func(*Message)

// WithReplyBy sets the deadline by which a reply is expected.
func WithReplyBy(t time.Time) Option {
	return func(m *Message) { m.ReplyBy = t }
}

// WithInReplyTo correlates this message with a prior message id.
func WithInReplyTo(id string) Option {
	return func(m *Message) { m.InReplyTo = id }
}

// WithProtocol overrides the interaction protocol (default "fipa-request").
func WithProtocol(p string) Option {
	return func(m *Message) { m.Protocol = p }
}

// WithMetadata attaches an additional metadata entry.
func WithMetadata(key string, value any) Option {
	return func(m *Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]any)
		}
		m.Metadata[key] = value
	}
}

// New constructs a validated message envelope.
//
// The performative must belong to the closed enumeration and sender,
// receiver, and conversationID must be non-empty. A message id and
// timestamp are generated; protocol and language default to
// "fipa-request" and "json".
func New(p Performative, sender, receiver string, content any, conversationID string, opts ...Option) (Message, error) {
	if !p.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidPerformative, p)
	}
	if sender == "" {
		return Message{}, errors.New("sender cannot be empty")
	}
	if receiver == "" {
		return Message{}, errors.New("receiver cannot be empty")
	}
	if conversationID == "" {
		return Message{}, errors.New("conversation id cannot be empty")
	}

	m := Message{
		Performative:   p,
		Sender:         sender,
		Receiver:       receiver,
		Content:        content,
		ConversationID: conversationID,
		Protocol:       "fipa-request",
		Language:       "json",
		MessageID:      uuid.NewString(),
		Timestamp:      time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m, nil
}

// Reply constructs a reply to m: receiver becomes the original sender,
// the conversation id and protocol are carried over, and in-reply-to is
// set to the original message id.
func (m Message) Reply(p Performative, sender string, content any, opts ...Option) (Message, error) {
	reply, err := New(p, sender, m.Sender, content, m.ConversationID, opts...)
	if err != nil {
		return Message{}, err
	}
	reply.InReplyTo = m.MessageID
	reply.Protocol = m.Protocol
	return reply, nil
}

// ValidateConversation checks that the message belongs to the given
// active conversation.
func (m Message) ValidateConversation(conversationID string) error {
	if m.ConversationID != conversationID {
		return fmt.Errorf("%w: message has %q, active run is %q",
			ErrConversationMismatch, m.ConversationID, conversationID)
	}
	return nil
}
