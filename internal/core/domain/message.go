package domain

import "encoding/json"

// Request is one operation invocation received from a client. Args are the
// positional arguments, still encoded.
type Request struct {
	ID        json.RawMessage
	Operation string
	Args      []json.RawMessage
}

type Response struct {
	ID        json.RawMessage
	Operation Operation
	Result    json.RawMessage
}

type Failure struct {
	ID  json.RawMessage
	Err *OperationError
}
