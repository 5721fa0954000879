package livebind

import (
	"encoding/json"
	"fmt"
)

// Client message types.
const (
	MessageAttr  = "attr"
	MessageEvent = "event"
)

// Frame types.
const (
	FrameRender = "render"
	FrameEvent  = "event"
	FrameError  = "error"
)

// ClientMessage is a message from a browser view. An attr message reports
// attribute values of a node; an event message additionally dispatches the
// named DOM event on the node after the attributes are applied.
type ClientMessage struct {
	Type  string            `json:"type" validate:"required,oneof=attr event"`
	Node  string            `json:"node" validate:"required,ident"`
	Event string            `json:"event,omitempty" validate:"required_if=Type event"`
	Attrs map[string]string `json:"attrs,omitempty" validate:"dive,keys,required,endkeys"`
	Data  map[string]any    `json:"data,omitempty"`
}

// Frame is a message to a browser view.
type Frame struct {
	Type    string            `json:"type"`
	HTML    string            `json:"html,omitempty"`
	Root    map[string]string `json:"root,omitempty"` // attributes of the view root
	Event   *DOMEvent         `json:"event,omitempty"`
	Message string            `json:"message,omitempty"`
}

// parseClientMessage decodes and validates a websocket message (internal protocol)
func parseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("failed to parse message: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}
