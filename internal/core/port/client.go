package port

import "github.com/Wyydra/mcsrelay/internal/core/domain"

type Client interface {
	SendResponse(resp domain.Response) error
	SendFailure(f domain.Failure) error
	SendEvent(ev domain.Event) error
	Close() error
}
