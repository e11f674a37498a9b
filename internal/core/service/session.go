package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/Wyydra/mcsrelay/internal/core/port"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrUnknownClient = errors.New("unknown client")

// session holds the event plumbing of one client. Its bridge re-emits
// upstream events on events, which only this client listens on.
type session struct {
	bridge *EventBridge
	events port.EventEmitter
	tags   map[domain.Tag]struct{}
	offs   []func()
}

// SessionService binds connected clients to the relay: it assigns ids,
// dispatches their requests and delivers results, errors and subscribed
// events back to them.
type SessionService struct {
	relay      *Relay
	internal   port.EventEmitter
	newEmitter func() port.EventEmitter
	registry   port.ClientRegistry
	ids        domain.ClientIDs

	mu       sync.Mutex
	sessions map[domain.ClientID]*session
}

// NewSessionService wires client sessions to relay. internal carries the
// events pushed by the media control server; newEmitter builds the
// per-client emitter each session's bridge re-emits on.
func NewSessionService(relay *Relay, internal port.EventEmitter, newEmitter func() port.EventEmitter, registry port.ClientRegistry) *SessionService {
	return &SessionService{
		relay:      relay,
		internal:   internal,
		newEmitter: newEmitter,
		registry:   registry,
		sessions:   make(map[domain.ClientID]*session),
	}
}

// SetupClient assigns c a fresh id and registers it.
func (s *SessionService) SetupClient(c port.Client) domain.ClientID {
	id := s.ids.Next()

	events := s.newEmitter()
	s.mu.Lock()
	s.sessions[id] = &session{
		bridge: NewEventBridge(s.internal, events),
		events: events,
		tags:   make(map[domain.Tag]struct{}),
	}
	s.mu.Unlock()

	s.registry.Register(id, c)
	return id
}

// RemoveClient drops the client's event subscriptions and unregisters it.
func (s *SessionService) RemoveClient(id domain.ClientID) {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if sess != nil {
		for _, off := range sess.offs {
			off()
		}
	}
	s.registry.Unregister(id)
}

// Handle runs req for client id and sends the outcome, success or error,
// back to that client.
func (s *SessionService) Handle(ctx context.Context, id domain.ClientID, req domain.Request) error {
	op := domain.Operation(req.Operation)
	result, err := s.dispatch(ctx, id, op, req.Args)

	client, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("client %s: %w", id, ErrUnknownClient)
	}
	if err != nil {
		return client.SendFailure(domain.Failure{ID: req.ID, Err: domain.FromError(err, op, nil)})
	}
	return client.SendResponse(domain.Response{ID: req.ID, Operation: op, Result: result})
}

func (s *SessionService) dispatch(ctx context.Context, id domain.ClientID, op domain.Operation, args []json.RawMessage) (json.RawMessage, error) {
	if _, ok := domain.ParseOperation(string(op)); !ok {
		return nil, domain.NewOperationError(op, nil, domain.CodeBadRequest, fmt.Sprintf("unsupported operation %q", op), nil)
	}

	var (
		room, user, mediaType, sourceID, mediaID string
		params                                   json.RawMessage
	)

	switch op {
	case domain.OpJoin:
		if err := decodeArgs(op, args, &room, &mediaType, &params); err != nil {
			return nil, err
		}
		return s.relay.Join(ctx, room, mediaType, params)

	case domain.OpLeave:
		if err := decodeArgs(op, args, &room, &user); err != nil {
			return nil, err
		}
		return s.relay.Leave(ctx, room, user)

	case domain.OpPublishAndSubscribe:
		if err := decodeArgs(op, args, &room, &user, &sourceID, &mediaType, &params); err != nil {
			return nil, err
		}
		return s.relay.PublishAndSubscribe(ctx, room, user, sourceID, mediaType, params)

	case domain.OpUnpublishAndUnsubscribe:
		if err := decodeArgs(op, args, &room, &user, &mediaID); err != nil {
			return nil, err
		}
		return s.relay.UnpublishAndUnsubscribe(ctx, room, user, mediaID)

	case domain.OpPublish:
		if err := decodeArgs(op, args, &user, &room, &mediaType, &params); err != nil {
			return nil, err
		}
		return s.relay.Publish(ctx, user, room, mediaType, params)

	case domain.OpUnpublish:
		if err := decodeArgs(op, args, &user, &mediaID); err != nil {
			return nil, err
		}
		return s.relay.Unpublish(ctx, user, mediaID)

	case domain.OpSubscribe:
		if err := decodeArgs(op, args, &user, &sourceID, &mediaType, &params); err != nil {
			return nil, err
		}
		return s.relay.Subscribe(ctx, user, sourceID, mediaType, params)

	case domain.OpUnsubscribe:
		if err := decodeArgs(op, args, &user, &mediaID); err != nil {
			return nil, err
		}
		return s.relay.Unsubscribe(ctx, user, mediaID)

	case domain.OpStartRecording:
		var recordingPath string
		if err := decodeArgs(op, args, &user, &mediaID, &recordingPath); err != nil {
			return nil, err
		}
		return s.relay.StartRecording(ctx, user, mediaID, recordingPath)

	case domain.OpStopRecording:
		var recID string
		if err := decodeArgs(op, args, &user, &sourceID, &recID); err != nil {
			return nil, err
		}
		return s.relay.StopRecording(ctx, user, sourceID, recID)

	case domain.OpConnect, domain.OpDisconnect:
		var source, sink string
		if err := decodeArgs(op, args, &source, &sink, &mediaType); err != nil {
			return nil, err
		}
		if op == domain.OpConnect {
			return s.relay.Connect(ctx, source, sink, mediaType)
		}
		return s.relay.Disconnect(ctx, source, sink, mediaType)

	case domain.OpAddIceCandidate:
		var candidate webrtc.ICECandidateInit
		if err := decodeArgs(op, args, &mediaID, &candidate); err != nil {
			return nil, err
		}
		return s.relay.AddIceCandidate(ctx, mediaID, candidate)

	case domain.OpGetUsers:
		if err := decodeArgs(op, args, &room); err != nil {
			return nil, err
		}
		return s.relay.GetUsers(ctx, room)

	case domain.OpGetUserMedias:
		if err := decodeArgs(op, args, &user); err != nil {
			return nil, err
		}
		return s.relay.GetUserMedias(ctx, user)

	case domain.OpOnEvent:
		var eventName string
		if err := decodeArgs(op, args, &eventName, &mediaID); err != nil {
			return nil, err
		}
		return s.onEvent(id, eventName, mediaID)
	}

	return nil, domain.NewOperationError(op, nil, domain.CodeBadRequest, fmt.Sprintf("unsupported operation %q", op), nil)
}

// onEvent adds one forwarder from the internal emitter to the client's own
// emitter, so each registration yields exactly one copy of every matching
// event for this client and none for anybody else.
func (s *SessionService) onEvent(id domain.ClientID, eventName, mediaID string) (json.RawMessage, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("client %s: %w", id, ErrUnknownClient)
	}

	tag, offBridge, err := sess.bridge.OnEvent(eventName, mediaID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[id] != sess {
		// client left while the subscription was being set up
		offBridge()
		return nil, fmt.Errorf("client %s: %w", id, ErrUnknownClient)
	}
	sess.offs = append(sess.offs, offBridge)

	if _, ok := sess.tags[tag]; !ok {
		sess.tags[tag] = struct{}{}
		sess.offs = append(sess.offs, sess.events.On(tag, func(ev domain.Event) {
			s.deliver(id, ev)
		}))
	}

	return json.Marshal(tag.String())
}

func (s *SessionService) deliver(id domain.ClientID, ev domain.Event) {
	client, ok := s.registry.Lookup(id)
	if !ok {
		return
	}
	if err := client.SendEvent(ev); err != nil {
		log.Error().Err(err).Str("client_id", id.String()).Str("tag", ev.Tag.String()).Msg("Error delivering event")
	}
}

// decodeArgs unmarshals the positional arguments into dst, in order. The
// argument count must match exactly.
func decodeArgs(op domain.Operation, args []json.RawMessage, dst ...any) error {
	if len(args) != len(dst) {
		return domain.NewOperationError(op, nil, domain.CodeBadRequest,
			fmt.Sprintf("expected %d arguments, got %d", len(dst), len(args)), nil)
	}
	for i, raw := range args {
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return domain.NewOperationError(op, nil, domain.CodeBadRequest,
				fmt.Sprintf("argument %d: %v", i, err), nil)
		}
	}
	return nil
}
