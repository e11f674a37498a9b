package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
)

type mediaCall struct {
	method domain.Operation
	args   []any
}

// fakeMedia records every call and answers with result / err.
type fakeMedia struct {
	mu     sync.Mutex
	calls  []mediaCall
	result json.RawMessage
	err    error
	block  bool
}

func (f *fakeMedia) Call(ctx context.Context, method domain.Operation, args ...any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, mediaCall{method: method, args: args})
	block, result, err := f.block, f.result, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return result, err
}

func (f *fakeMedia) Connected() bool { return true }

func (f *fakeMedia) lastCall() mediaCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return mediaCall{}
	}
	return f.calls[len(f.calls)-1]
}

type fakeClient struct {
	mu        sync.Mutex
	responses []domain.Response
	failures  []domain.Failure
	events    []domain.Event
	closed    bool
}

func (c *fakeClient) SendResponse(resp domain.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp)
	return nil
}

func (c *fakeClient) SendFailure(f domain.Failure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
	return nil
}

func (c *fakeClient) SendEvent(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
