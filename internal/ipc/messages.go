// Package ipc provides the message types and transport between the editor
// host and meow-studio.
//
// The protocol is newline-delimited JSON over a Unix domain socket. Each
// message is a single JSON object on one line, and every request gets
// exactly one response line.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/meow-stack/meow-studio/internal/store"
	"github.com/meow-stack/meow-studio/internal/types"
)

// MessageType identifies the IPC message kind.
type MessageType string

const (
	// Request types (host → studio)
	MsgPing    MessageType = "ping"
	MsgDrop    MessageType = "drop"
	MsgWheel   MessageType = "wheel"
	MsgGetZoom MessageType = "get_zoom"
	MsgSave    MessageType = "save"
	MsgCancel  MessageType = "cancel"

	// Response types (studio → host)
	MsgAck     MessageType = "ack"
	MsgError   MessageType = "error"
	MsgZoom    MessageType = "zoom"
	MsgSaved   MessageType = "saved"
	MsgDropped MessageType = "dropped"
)

// Valid returns true if this is a recognized message type.
func (t MessageType) Valid() bool {
	return t.IsRequest() || t.IsResponse()
}

// IsRequest returns true if this message type is sent from host to studio.
func (t MessageType) IsRequest() bool {
	switch t {
	case MsgPing, MsgDrop, MsgWheel, MsgGetZoom, MsgSave, MsgCancel:
		return true
	}
	return false
}

// IsResponse returns true if this message type is sent from studio to host.
func (t MessageType) IsResponse() bool {
	switch t {
	case MsgAck, MsgError, MsgZoom, MsgSaved, MsgDropped:
		return true
	}
	return false
}

// --- Request Messages (host → studio) ---

// PingMessage checks that the server is up.
type PingMessage struct {
	Type MessageType `json:"type"` // Always "ping"
}

// DropMessage carries text dropped onto the editor.
type DropMessage struct {
	Type    MessageType `json:"type"` // Always "drop"
	Payload string      `json:"payload"`
}

// WheelMessage carries a mouse-wheel event on a canvas.
// Modifiers is a list like "primary+alt".
type WheelMessage struct {
	Type      MessageType `json:"type"` // Always "wheel"
	Canvas    string      `json:"canvas"`
	Delta     int         `json:"delta"`
	Modifiers string      `json:"modifiers,omitempty"`
}

// GetZoomMessage asks for the zoom level of a canvas.
type GetZoomMessage struct {
	Type   MessageType `json:"type"` // Always "get_zoom"
	Canvas string      `json:"canvas"`
}

// SaveMessage asks for a component to be saved at Target ("MOUNT:/path").
// The component carries its current context and directory; the host
// applies the returned relocation to its own copy.
type SaveMessage struct {
	Type      MessageType      `json:"type"` // Always "save"
	SaveID    string           `json:"save_id,omitempty"`
	Component *types.Component `json:"component"`
	Target    string           `json:"target"`
}

// CancelMessage cancels the running save with SaveID.
type CancelMessage struct {
	Type   MessageType `json:"type"` // Always "cancel"
	SaveID string      `json:"save_id"`
}

// --- Response Messages (studio → host) ---

// AckMessage confirms successful operation.
type AckMessage struct {
	Type    MessageType `json:"type"` // Always "ack"
	Success bool        `json:"success"`
}

// ErrorMessage reports an error to the host. Code is the StudioError code
// when there is one.
type ErrorMessage struct {
	Type    MessageType `json:"type"` // Always "error"
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

// ZoomMessage reports a canvas zoom level. Handled is false when a wheel
// event was left to the canvas.
type ZoomMessage struct {
	Type    MessageType `json:"type"` // Always "zoom"
	Canvas  string      `json:"canvas"`
	Level   float64     `json:"level"`
	Handled bool        `json:"handled"`
}

// SavedMessage reports a completed save.
type SavedMessage struct {
	Type       MessageType       `json:"type"` // Always "saved"
	SaveID     string            `json:"save_id,omitempty"`
	Mode       string            `json:"mode"`
	Dir        string            `json:"dir"`
	Relocation *types.Relocation `json:"relocation,omitempty"`
	Stats      *store.SaveStats  `json:"stats,omitempty"`
}

// DroppedMessage reports whether a drop was imported.
type DroppedMessage struct {
	Type     MessageType `json:"type"` // Always "dropped"
	Accepted bool        `json:"accepted"`
}

// --- Message Interface ---

// Message is the interface implemented by all IPC messages.
type Message interface {
	// MessageType returns the type identifier for this message.
	MessageType() MessageType
}

func (m *PingMessage) MessageType() MessageType    { return MsgPing }
func (m *DropMessage) MessageType() MessageType    { return MsgDrop }
func (m *WheelMessage) MessageType() MessageType   { return MsgWheel }
func (m *GetZoomMessage) MessageType() MessageType { return MsgGetZoom }
func (m *SaveMessage) MessageType() MessageType    { return MsgSave }
func (m *CancelMessage) MessageType() MessageType  { return MsgCancel }
func (m *AckMessage) MessageType() MessageType     { return MsgAck }
func (m *ErrorMessage) MessageType() MessageType   { return MsgError }
func (m *ZoomMessage) MessageType() MessageType    { return MsgZoom }
func (m *SavedMessage) MessageType() MessageType   { return MsgSaved }
func (m *DroppedMessage) MessageType() MessageType { return MsgDropped }

// --- Parsing Helpers ---

// RawMessage is used for initial parsing to determine message type.
type RawMessage struct {
	Type MessageType `json:"type"`
}

// ParseMessage parses a JSON message and returns the appropriate typed message.
// Returns an error if the message type is unknown or JSON is malformed.
func ParseMessage(data []byte) (Message, error) {
	var raw RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var msg Message
	switch raw.Type {
	case MsgPing:
		msg = &PingMessage{}
	case MsgDrop:
		msg = &DropMessage{}
	case MsgWheel:
		msg = &WheelMessage{}
	case MsgGetZoom:
		msg = &GetZoomMessage{}
	case MsgSave:
		msg = &SaveMessage{}
	case MsgCancel:
		msg = &CancelMessage{}
	case MsgAck:
		msg = &AckMessage{}
	case MsgError:
		msg = &ErrorMessage{}
	case MsgZoom:
		msg = &ZoomMessage{}
	case MsgSaved:
		msg = &SavedMessage{}
	case MsgDropped:
		msg = &DroppedMessage{}
	default:
		return nil, fmt.Errorf("unknown message type: %q", raw.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to parse %s message: %w", raw.Type, err)
	}

	return msg, nil
}

// Marshal serializes a message to JSON as a single line (no pretty printing).
func Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
