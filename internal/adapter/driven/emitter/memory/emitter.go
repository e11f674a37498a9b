package memory

import (
	"sync"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/Wyydra/mcsrelay/internal/core/port"
)

type entry struct {
	id uint64
	l  port.Listener
}

// Emitter is an in-process port.EventEmitter. Listeners run synchronously
// on the emitting goroutine, in registration order.
type Emitter struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[domain.Tag][]entry
}

func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[domain.Tag][]entry),
	}
}

func (e *Emitter) On(tag domain.Tag, l port.Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next++
	id := e.next
	e.listeners[tag] = append(e.listeners[tag], entry{id: id, l: l})

	var once sync.Once
	return func() {
		once.Do(func() { e.off(tag, id) })
	}
}

func (e *Emitter) off(tag domain.Tag, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.listeners[tag]
	for i, en := range entries {
		if en.id == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(e.listeners, tag)
		return
	}
	e.listeners[tag] = entries
}

func (e *Emitter) Emit(ev domain.Event) {
	e.mu.RLock()
	entries := e.listeners[ev.Tag]
	e.mu.RUnlock()

	for _, en := range entries {
		en.l(ev)
	}
}

// ListenerCount returns how many listeners are registered for tag.
func (e *Emitter) ListenerCount(tag domain.Tag) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[tag])
}
