package port

import (
	"context"
	"encoding/json"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
)

// MediaControl is the connection to the external media control server.
// Call invokes the named method with positional args and returns its raw
// result. Rejections from the server are returned as *domain.MediaError.
type MediaControl interface {
	Call(ctx context.Context, method domain.Operation, args ...any) (json.RawMessage, error)
	Connected() bool
}
