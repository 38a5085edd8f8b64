// Package protocol defines the JSON messages exchanged with the launcher
// backend over the /api websocket. Every message is an object whose "type"
// field selects the variant; only the payload belonging to that variant is
// carried.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the discriminant of a Message.
type Type string

const (
	// Synthesised locally by the connection, never sent over the wire.
	TypeConnected    Type = "connected"
	TypeDisconnected Type = "disconnected"

	TypeUnauthorised      Type = "unauthorised"
	TypeLoggedOut         Type = "logged-out"
	TypeRequestConfig     Type = "request-config"
	TypeConfig            Type = "config"
	TypeRequestContainers Type = "request-containers"
	TypeContainers        Type = "containers"
	TypeRequestUser       Type = "request-user"
	TypeUser              Type = "user"
)

var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrMissingType    = errors.New("message has no type")
	ErrMissingPayload = errors.New("message is missing its payload")
)

// Synthetic reports whether messages of this type only exist locally.
func (t Type) Synthetic() bool {
	return t == TypeConnected || t == TypeDisconnected
}

// Request reports whether the type is an outbound request.
func (t Type) Request() bool {
	switch t {
	case TypeRequestConfig, TypeRequestContainers, TypeRequestUser:
		return true
	}
	return false
}

// Message is the tagged union of every message kind. Only the field that
// matches Type is meaningful; the others are ignored on the wire.
type Message struct {
	Type       Type
	Config     *Config
	User       *User
	Containers []Container
}

// Config is pushed by the backend once a session is established.
type Config struct {
	Title string `json:"title"`
	VLE   VLE    `json:"vle"`
}

// VLE points at the learning environment the launcher is embedded in.
type VLE struct {
	URL string `json:"url"`
}

// User identifies the authenticated user.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// wire is the JSON shape of a Message.
type wire struct {
	Type       Type         `json:"type"`
	Config     *Config      `json:"config,omitempty"`
	User       *User        `json:"user,omitempty"`
	Containers *[]Container `json:"containers,omitempty"`
}

// MarshalJSON writes the type and the payload belonging to it.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wire{Type: m.Type}
	switch m.Type {
	case TypeConfig:
		w.Config = m.Config
	case TypeUser:
		w.User = m.User
	case TypeContainers:
		containers := m.Containers
		w.Containers = &containers
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the type and keeps only the payload belonging to it.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w struct {
		Type       Type        `json:"type"`
		Config     *Config     `json:"config"`
		User       *User       `json:"user"`
		Containers []Container `json:"containers"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = Message{Type: w.Type}
	switch w.Type {
	case TypeConfig:
		m.Config = w.Config
	case TypeUser:
		m.User = w.User
	case TypeContainers:
		m.Containers = w.Containers
	}
	return nil
}

// Validate checks that the message carries a type and, for variants that
// need one, a payload.
func (m Message) Validate() error {
	switch {
	case m.Type == "":
		return ErrMissingType
	case m.Type == TypeConfig && m.Config == nil:
		return fmt.Errorf("%s: %w", m.Type, ErrMissingPayload)
	case m.Type == TypeUser && m.User == nil:
		return fmt.Errorf("%s: %w", m.Type, ErrMissingPayload)
	}
	return nil
}

// Encode serialises a message to its wire form.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses a wire frame. Unknown types are accepted as-is so newer
// backends can add variants.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, ErrEmptyPayload
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Connected is published locally when the channel opens.
func Connected() Message {
	return Message{Type: TypeConnected}
}

// Disconnected is published locally when the channel closes.
func Disconnected() Message {
	return Message{Type: TypeDisconnected}
}

func RequestConfig() Message {
	return Message{Type: TypeRequestConfig}
}

func RequestUser() Message {
	return Message{Type: TypeRequestUser}
}

func RequestContainers() Message {
	return Message{Type: TypeRequestContainers}
}
