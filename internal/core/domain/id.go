package domain

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// ClientID identifies a connected client for the lifetime of the process.
type ClientID int64

func (id ClientID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ClientIDs hands out client ids starting at 0. Safe for concurrent use.
type ClientIDs struct {
	next atomic.Int64
}

func (g *ClientIDs) Next() ClientID {
	return ClientID(g.next.Add(1) - 1)
}

// ConnID tags a single WebSocket connection in logs.
type ConnID uuid.UUID

func NewConnID() ConnID {
	return ConnID(uuid.New())
}

func (id ConnID) String() string {
	return uuid.UUID(id).String()
}
