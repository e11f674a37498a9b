package service

import (
	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/Wyydra/mcsrelay/internal/core/port"
)

// EventBridge re-emits events pushed by the media control server (internal)
// to the emitter of one client session (external).
type EventBridge struct {
	internal port.EventEmitter
	external port.EventEmitter
}

func NewEventBridge(internal, external port.EventEmitter) *EventBridge {
	return &EventBridge{
		internal: internal,
		external: external,
	}
}

// OnEvent starts forwarding eventName events for mediaID and returns the
// tag they are re-emitted under. Each call adds one more forwarder; off
// removes it.
func (b *EventBridge) OnEvent(eventName, mediaID string) (domain.Tag, func(), error) {
	kind, err := domain.ParseEventKind(eventName)
	if err != nil {
		return domain.Tag{}, nil, handleError(err, domain.OpOnEvent,
			domain.Params{"eventName": eventName, "mediaId": mediaID})
	}

	tag := domain.Tag{Kind: kind, MediaID: mediaID}
	off := b.internal.On(tag, func(ev domain.Event) {
		b.external.Emit(ev)
	})
	return tag, off, nil
}
