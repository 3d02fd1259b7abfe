package protocol

import (
	"encoding/json"
	"fmt"
)

// Outbound is a frame sent to a client.
type Outbound struct {
	Type    string `json:"type"`
	Message any    `json:"message,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// JoinResult is the correlation echo sent after a successful join.
type JoinResult struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result string          `json:"result"`
}

// System builds a system notice. An empty channel is omitted.
func System(message any, channel string) Outbound {
	return Outbound{Type: TypeSystem, Message: message, Channel: channel}
}

// Error builds an error reply.
func Error(message string) Outbound {
	return Outbound{Type: TypeError, Message: message}
}

// Broadcast wraps a relayed payload. The payload is forwarded byte for byte.
func Broadcast(message json.RawMessage, channel string) Outbound {
	out := Outbound{Type: TypeBroadcast, Sender: SenderTag, Channel: channel}
	if len(message) > 0 {
		out.Message = message
	}
	return out
}

// Encode serializes an outbound frame.
func Encode(out Outbound) ([]byte, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", out.Type, err)
	}
	return data, nil
}
