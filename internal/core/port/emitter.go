package port

import "github.com/Wyydra/mcsrelay/internal/core/domain"

type Listener func(ev domain.Event)

// EventEmitter fans events out to every listener registered for their tag.
// Registering the same listener twice delivers events twice.
type EventEmitter interface {
	On(tag domain.Tag, l Listener) (off func())
	Emit(ev domain.Event)
}
