package mcs

import (
	"encoding/json"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
)

// Frames exchanged with the media control server. Requests carry a
// connection-unique id that the matching response echoes; pushed events
// carry an event tag instead.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type inbound struct {
	ID     uint64             `json:"id"`
	Result json.RawMessage    `json:"result,omitempty"`
	Error  *domain.MediaError `json:"error,omitempty"`
	Event  string             `json:"event,omitempty"`
	Data   json.RawMessage    `json:"data,omitempty"`
}

type callResult struct {
	msg inbound
	err error
}
