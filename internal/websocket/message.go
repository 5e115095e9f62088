package websocket

import (
	"encoding/json"

	"github.com/imfiit/arena/internal/domain"
)

// TypeAck is the frame type of a request acknowledgement.
const TypeAck = "ack"

// Frame is the inbound wire format.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Message is the outbound wire format.
type Message struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Ack is the payload of an acknowledgement. Code and Error are set only
// when OK is false.
type Ack struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// NewMessage creates an event frame.
func NewMessage(msgType string, payload any) Message {
	return Message{Type: msgType, Payload: payload}
}

// NewAck answers requestID. A nil err is a success carrying data.
func NewAck(requestID string, data any, err error) Message {
	ack := Ack{OK: err == nil, Data: data}
	if err != nil {
		ack.Code, ack.Error = domain.Describe(err)
		ack.Data = nil
	}
	return Message{Type: TypeAck, RequestID: requestID, Payload: ack}
}

// Encode marshals m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
