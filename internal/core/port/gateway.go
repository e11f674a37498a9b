package port

import "github.com/Wyydra/mcsrelay/internal/core/domain"

type ClientRegistry interface {
	Register(id domain.ClientID, c Client)
	Unregister(id domain.ClientID)
	Lookup(id domain.ClientID) (Client, bool)
	Count() int
}
