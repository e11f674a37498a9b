package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/Wyydra/mcsrelay/internal/core/port"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Relay forwards media operations to the media control server. Every
// failure comes back as *domain.OperationError.
type Relay struct {
	media   port.MediaControl
	timeout time.Duration
}

// NewRelay returns a relay bounding each upstream call by timeout. A zero
// timeout leaves calls bounded only by the caller's context.
func NewRelay(media port.MediaControl, timeout time.Duration) *Relay {
	return &Relay{
		media:   media,
		timeout: timeout,
	}
}

func (r *Relay) Join(ctx context.Context, room, mediaType string, params json.RawMessage) (json.RawMessage, error) {
	return r.call(ctx, domain.OpJoin,
		domain.Params{"room": room, "type": mediaType, "params": params},
		room, mediaType, params)
}

func (r *Relay) Leave(ctx context.Context, room, user string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpLeave,
		domain.Params{"room": room, "user": user},
		room, user)
}

func (r *Relay) PublishAndSubscribe(ctx context.Context, room, user, sourceID, mediaType string, params json.RawMessage) (json.RawMessage, error) {
	return r.call(ctx, domain.OpPublishAndSubscribe,
		domain.Params{"room": room, "user": user, "sourceId": sourceID, "type": mediaType, "params": params},
		room, user, sourceID, mediaType, params)
}

func (r *Relay) UnpublishAndUnsubscribe(ctx context.Context, room, user, mediaID string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpUnpublishAndUnsubscribe,
		domain.Params{"room": room, "user": user, "mediaId": mediaID},
		room, user, mediaID)
}

func (r *Relay) Publish(ctx context.Context, user, room, mediaType string, params json.RawMessage) (json.RawMessage, error) {
	return r.call(ctx, domain.OpPublish,
		domain.Params{"user": user, "room": room, "type": mediaType, "params": params},
		user, room, mediaType, params)
}

func (r *Relay) Unpublish(ctx context.Context, user, mediaID string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpUnpublish,
		domain.Params{"user": user, "mediaId": mediaID},
		user, mediaID)
}

func (r *Relay) Subscribe(ctx context.Context, user, sourceID, mediaType string, params json.RawMessage) (json.RawMessage, error) {
	return r.call(ctx, domain.OpSubscribe,
		domain.Params{"user": user, "sourceId": sourceID, "type": mediaType, "params": params},
		user, sourceID, mediaType, params)
}

func (r *Relay) Unsubscribe(ctx context.Context, user, mediaID string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpUnsubscribe,
		domain.Params{"user": user, "mediaId": mediaID},
		user, mediaID)
}

func (r *Relay) StartRecording(ctx context.Context, userID, mediaID, recordingPath string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpStartRecording,
		domain.Params{"userId": userID, "mediaId": mediaID, "recordingPath": recordingPath},
		userID, mediaID, recordingPath)
}

func (r *Relay) StopRecording(ctx context.Context, userID, sourceID, recID string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpStopRecording,
		domain.Params{"userId": userID, "sourceId": sourceID, "recId": recID},
		userID, sourceID, recID)
}

func (r *Relay) Connect(ctx context.Context, source, sink, mediaType string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpConnect,
		domain.Params{"source": source, "sink": sink, "type": mediaType},
		source, sink, mediaType)
}

func (r *Relay) Disconnect(ctx context.Context, source, sink, mediaType string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpDisconnect,
		domain.Params{"source": source, "sink": sink, "type": mediaType},
		source, sink, mediaType)
}

func (r *Relay) AddIceCandidate(ctx context.Context, mediaID string, candidate webrtc.ICECandidateInit) (json.RawMessage, error) {
	return r.call(ctx, domain.OpAddIceCandidate,
		domain.Params{"mediaId": mediaID, "candidate": candidate},
		mediaID, candidate)
}

func (r *Relay) GetUsers(ctx context.Context, room string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpGetUsers,
		domain.Params{"room": room},
		room)
}

func (r *Relay) GetUserMedias(ctx context.Context, user string) (json.RawMessage, error) {
	return r.call(ctx, domain.OpGetUserMedias,
		domain.Params{"user": user},
		user)
}

func (r *Relay) call(ctx context.Context, op domain.Operation, params domain.Params, args ...any) (json.RawMessage, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	answer, err := r.media.Call(ctx, op, args...)
	if err != nil {
		return nil, handleError(err, op, params)
	}
	return answer, nil
}

func handleError(err error, op domain.Operation, params domain.Params) *domain.OperationError {
	resp := domain.FromError(err, op, params)
	log.Error().
		Str("operation", op.String()).
		Interface("error", resp).
		Msg("Reject operation")
	return resp
}
