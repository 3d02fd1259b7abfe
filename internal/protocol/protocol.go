// Package protocol defines the JSON messages exchanged with relay clients.
//
// Inbound frames are decoded into one of three variants: Join, Relay or
// Unknown. Outbound frames are built with the System, Error and Broadcast
// constructors and serialized with Encode.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound message types.
const (
	TypeJoin           = "join"
	TypeMessage        = "message"
	TypeProgressUpdate = "progress_update"
)

// Outbound message types.
const (
	TypeSystem    = "system"
	TypeError     = "error"
	TypeBroadcast = "broadcast"
)

// SenderTag marks relayed messages in place of the real sender identity.
const SenderTag = "peer"

var (
	// ErrMalformed is returned when a frame is not a JSON object with a
	// string type.
	ErrMalformed = errors.New("malformed message")
	// ErrChannelRequired is returned when a channel-scoped message lacks a
	// non-empty string channel.
	ErrChannelRequired = errors.New("channel name is required")
)

var validate = validator.New()

// Inbound is a decoded client frame.
type Inbound interface {
	Kind() string
}

// Join asks for the connection to be added to Channel.
type Join struct {
	Channel string
	ID      json.RawMessage
}

// Relay carries an opaque payload to the other members of Channel. Type is
// either "message" or "progress_update".
type Relay struct {
	Type    string
	Channel string
	ID      json.RawMessage
	Message json.RawMessage
}

// Unknown is any frame whose type the relay does not handle.
type Unknown struct {
	Type string
}

func (Join) Kind() string      { return TypeJoin }
func (r Relay) Kind() string   { return r.Type }
func (u Unknown) Kind() string { return u.Type }

// InvalidChannel is returned with ErrChannelRequired so the caller still
// knows which kind of request was rejected.
type InvalidChannel struct {
	Type string
}

func (e *InvalidChannel) Error() string {
	return fmt.Sprintf("%s: %v", e.Type, ErrChannelRequired)
}

func (e *InvalidChannel) Unwrap() error { return ErrChannelRequired }

type frame struct {
	Type    string          `json:"type"`
	Channel any             `json:"channel"`
	ID      json.RawMessage `json:"id"`
	Message json.RawMessage `json:"message"`
}

type channelName struct {
	Name string `validate:"required"`
}

// Decode parses one inbound frame.
func Decode(data []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case TypeJoin:
		name, err := f.channel()
		if err != nil {
			return nil, err
		}
		return Join{Channel: name, ID: f.ID}, nil
	case TypeMessage, TypeProgressUpdate:
		name, err := f.channel()
		if err != nil {
			return nil, err
		}
		return Relay{Type: f.Type, Channel: name, ID: f.ID, Message: f.Message}, nil
	default:
		return Unknown{Type: f.Type}, nil
	}
}

// IsJoin reports whether data carries a join request, whether or not its
// channel is valid.
func IsJoin(data []byte) bool {
	var f struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &f) == nil && f.Type == TypeJoin
}

func (f frame) channel() (string, error) {
	name, _ := f.Channel.(string)
	if err := validate.Struct(channelName{Name: name}); err != nil {
		return "", &InvalidChannel{Type: f.Type}
	}
	return name, nil
}

// Diagnostics are the optional command/result sub-fields of a relayed
// payload. They are only used for logging.
type Diagnostics struct {
	Command   string
	HasResult bool
}

// Inspect extracts Diagnostics from a relay payload. Non-object payloads
// yield the zero value.
func Inspect(message json.RawMessage) Diagnostics {
	var body struct {
		Command any             `json:"command"`
		Result  json.RawMessage `json:"result"`
	}
	if len(message) == 0 || json.Unmarshal(message, &body) != nil {
		return Diagnostics{}
	}

	d := Diagnostics{HasResult: len(body.Result) > 0 && string(body.Result) != "null"}
	if body.Command != nil {
		d.Command = fmt.Sprint(body.Command)
	}
	return d
}
