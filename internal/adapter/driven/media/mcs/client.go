// Package mcs connects to the external media control server over a single
// WebSocket and multiplexes concurrent calls on it.
//
// Each call gets a sequence id and waits on its own channel in the pending
// map; one receive loop per connection routes responses by id and queues
// pushed events for a separate goroutine that feeds the event emitter, so
// slow listeners never hold up responses. When the connection breaks every
// pending call fails and the client redials with exponential backoff.
package mcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/Wyydra/mcsrelay/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected   = errors.New("not connected to media control server")
	ErrConnectionLost = errors.New("connection to media control server lost")
	ErrClosed         = errors.New("media control client closed")
)

const (
	DefaultPath         = "/mcs"
	writeWait           = 10 * time.Second
	pingInterval        = 30 * time.Second
	minReconnectBackoff = 500 * time.Millisecond
	maxReconnectBackoff = 30 * time.Second
	eventQueueSize      = 256
)

type Config struct {
	Address        string
	Port           int
	Secure         bool
	Path           string
	ConnectTimeout time.Duration
}

// URL returns ws://address:port/path, or wss:// when Secure is set.
func (c Config) URL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Address, strconv.Itoa(c.Port)),
		Path:   path,
	}
	return u.String()
}

// implements port.MediaControl
type Client struct {
	url    string
	dialer *websocket.Dialer
	events port.EventEmitter
	queue  chan domain.Event

	mu   sync.RWMutex
	conn *websocket.Conn

	writeMu sync.Mutex
	seq     atomic.Uint64
	pending sync.Map // map[uint64]chan callResult

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient returns a client that pushes upstream events into events.
// Start must be called before any Call.
func NewClient(cfg Config, events port.EventEmitter) *Client {
	return &Client{
		url: cfg.URL(),
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		events: events,
		queue:  make(chan domain.Event, eventQueueSize),
		done:   make(chan struct{}),
	}
}

// Start dials the server and returns once the connection is open.
func (c *Client) Start(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("connect to media control server %s: %w", c.url, err)
	}
	if !c.setConn(conn) {
		conn.Close()
		return ErrClosed
	}
	log.Info().Str("url", c.url).Msg("Connected to media control server")

	go c.deliverEvents()
	go c.supervise(conn)
	return nil
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Call sends method with args and waits for the matching response, for
// ctx to end, or for the connection to break.
func (c *Client) Call(ctx context.Context, method domain.Operation, args ...any) (json.RawMessage, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if args == nil {
		args = []any{}
	}
	id := c.seq.Add(1)
	ch := make(chan callResult, 1)
	// registered before the write so a fast response cannot be missed
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(request{ID: id, Method: method.String(), Params: args})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.msg.Error != nil {
			return nil, res.msg.Error
		}
		return res.msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Close stops reconnecting and closes the current connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn == nil {
			return
		}

		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		// the receive loop may have closed it first
		if err = conn.Close(); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

// setConn installs conn unless the client was closed meanwhile.
func (c *Client) setConn(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed() {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) clearConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// supervise owns one connection at a time: it reads until the connection
// breaks, fails the calls still waiting on it and redials.
func (c *Client) supervise(conn *websocket.Conn) {
	for {
		stopPing := make(chan struct{})
		go c.keepalive(conn, stopPing)

		err := c.recvLoop(conn)
		close(stopPing)
		c.clearConn(conn)
		conn.Close()
		c.failPending(fmt.Errorf("%w: %v", ErrConnectionLost, err))

		if c.closed() {
			return
		}
		log.Warn().Err(err).Str("url", c.url).Msg("Lost connection to media control server")

		conn = c.redial()
		if conn == nil {
			return
		}
		if !c.setConn(conn) {
			conn.Close()
			return
		}
		log.Info().Str("url", c.url).Msg("Reconnected to media control server")
	}
}

func (c *Client) recvLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg inbound
		if err := decodeInbound(data, &msg); err != nil {
			log.Warn().Err(err).Msg("Discarding malformed frame from media control server")
			continue
		}

		if msg.Event != "" {
			c.dispatchEvent(msg)
			continue
		}

		if ch, ok := c.pending.LoadAndDelete(msg.ID); ok {
			ch.(chan callResult) <- callResult{msg: msg}
		} else {
			log.Debug().Uint64("id", msg.ID).Msg("Response for unknown call")
		}
	}
}

// decodeInbound keeps numbers in error codes and details as json.Number so
// they reach clients exactly as the server sent them.
func decodeInbound(data []byte, msg *inbound) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(msg)
}

func (c *Client) dispatchEvent(msg inbound) {
	tag, err := domain.ParseTag(msg.Event)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding event from media control server")
		return
	}
	select {
	case c.queue <- domain.Event{Tag: tag, Data: msg.Data}:
	default:
		log.Warn().Str("tag", msg.Event).Msg("Event queue full, dropping event")
	}
}

func (c *Client) deliverEvents() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.queue:
			c.events.Emit(ev)
		}
	}
}

// failPending wakes every waiting caller with err. LoadAndDelete makes sure
// each channel gets at most one value.
func (c *Client) failPending(err error) {
	c.pending.Range(func(key, _ any) bool {
		if ch, ok := c.pending.LoadAndDelete(key); ok {
			ch.(chan callResult) <- callResult{err: err}
		}
		return true
	})
}

func (c *Client) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// redial retries until a connection opens or the client is closed, in
// which case it returns nil.
func (c *Client) redial() *websocket.Conn {
	backoff := minReconnectBackoff
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(backoff):
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err == nil {
			return conn
		}
		log.Debug().Err(err).Dur("backoff", backoff).Msg("Reconnect to media control server failed")

		backoff *= 2
		if backoff > maxReconnectBackoff {
			backoff = maxReconnectBackoff
		}
	}
}
