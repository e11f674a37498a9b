package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	sendQueueSize = 64
)

var errSendQueueFull = errors.New("send queue full, dropping event")

// WSClient writes responses directly and queues events for writePump, so
// emitters never block on a slow socket.
type WSClient struct {
	connID domain.ConnID
	conn   *websocket.Conn
	mu     sync.Mutex
	send   chan any
}

func newWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		connID: domain.NewConnID(),
		conn:   conn,
		send:   make(chan any, sendQueueSize),
	}
}

func (c *WSClient) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *WSClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *WSClient) SendResponse(resp domain.Response) error {
	type responseDTO struct {
		ID        json.RawMessage `json:"id,omitempty"`
		Type      string          `json:"type"`
		Operation string          `json:"operation"`
		Result    json.RawMessage `json:"result"`
	}

	return c.write(responseDTO{
		ID:        resp.ID,
		Type:      "response",
		Operation: resp.Operation.String(),
		Result:    resp.Result,
	})
}

func (c *WSClient) SendFailure(f domain.Failure) error {
	type errorDTO struct {
		ID json.RawMessage `json:"id,omitempty"`
		*domain.OperationError
	}

	return c.write(errorDTO{ID: f.ID, OperationError: f.Err})
}

func (c *WSClient) SendEvent(ev domain.Event) error {
	type eventDTO struct {
		Type  string          `json:"type"`
		Tag   string          `json:"tag"`
		Event json.RawMessage `json:"event"`
	}

	select {
	case c.send <- eventDTO{Type: "event", Tag: ev.Tag.String(), Event: ev.Data}:
		return nil
	default:
		return errSendQueueFull
	}
}

// writePump writes queued events and pings the peer until done is closed
// or a write fails.
func (c *WSClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case v := <-c.send:
			if err := c.write(v); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

type incomingDTO struct {
	ID   json.RawMessage   `json:"id,omitempty"`
	Type string            `json:"type"`
	Args []json.RawMessage `json:"args"`
}

func decodeRequest(data []byte) (domain.Request, error) {
	var in incomingDTO
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.Request{}, err
	}
	if in.Type == "" {
		return domain.Request{ID: in.ID}, fmt.Errorf("missing operation type")
	}
	return domain.Request{ID: in.ID, Operation: in.Type, Args: in.Args}, nil
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.opts.ConnectionTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		// TODO: restrict to configured origins once clients send one
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn)
	clientID := h.SessionService.SetupClient(client)

	l := log.With().Str("client_id", clientID.String()).Str("conn_id", client.connID.String()).Logger()
	l.Info().Msg("New client connected")

	ctx, cancel := context.WithCancel(context.Background())
	var inflight sync.WaitGroup
	done := make(chan struct{})

	defer func() {
		close(done)
		cancel()
		inflight.Wait()
		l.Info().Msg("Client disconnected")
		h.SessionService.RemoveClient(clientID)
		conn.Close()
	}()

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go client.writePump(done)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if n := h.opts.MaxMessagesPerSecond; n > 0 {
		limiter = rate.NewLimiter(rate.Limit(n), n)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		req, err := decodeRequest(data)
		if err != nil {
			l.Warn().Err(err).Msg("Malformed request")
			h.reject(client, l, req, domain.CodeBadRequest, err.Error())
			continue
		}

		if !limiter.Allow() {
			h.reject(client, l, req, domain.CodeRateLimited, "rate limit exceeded")
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() {
				if rec := recover(); rec != nil {
					l.Error().Interface("panic", rec).Str("operation", req.Operation).Msg("Recovered from panic in request handler")
				}
			}()

			if err := h.SessionService.Handle(ctx, clientID, req); err != nil {
				l.Error().Err(err).Str("operation", req.Operation).Msg("Failed to deliver result")
			}
		}()
	}
}

func (h *Handler) reject(client *WSClient, l zerolog.Logger, req domain.Request, code, message string) {
	f := domain.Failure{
		ID:  req.ID,
		Err: domain.NewOperationError(domain.Operation(req.Operation), nil, code, message, nil),
	}
	if err := client.SendFailure(f); err != nil {
		l.Error().Err(err).Msg("Failed to send error")
	}
}
