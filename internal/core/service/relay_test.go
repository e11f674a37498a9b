package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayCase struct {
	op     domain.Operation
	invoke func(ctx context.Context, r *Relay) (json.RawMessage, error)
	args   []any
	params domain.Params
}

func relayCases() []relayCase {
	p := json.RawMessage(`{"sdp":"v=0"}`)
	mid := "0"
	idx := uint16(0)
	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 UDP 2122260223 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx}

	return []relayCase{
		{
			op:     domain.OpJoin,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Join(ctx, "room1", "SFU", p) },
			args:   []any{"room1", "SFU", p},
			params: domain.Params{"room": "room1", "type": "SFU", "params": p},
		},
		{
			op:     domain.OpLeave,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Leave(ctx, "room1", "u1") },
			args:   []any{"room1", "u1"},
			params: domain.Params{"room": "room1", "user": "u1"},
		},
		{
			op: domain.OpPublishAndSubscribe,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) {
				return r.PublishAndSubscribe(ctx, "room1", "u1", "src1", "WEBRTC", p)
			},
			args:   []any{"room1", "u1", "src1", "WEBRTC", p},
			params: domain.Params{"room": "room1", "user": "u1", "sourceId": "src1", "type": "WEBRTC", "params": p},
		},
		{
			op: domain.OpUnpublishAndUnsubscribe,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) {
				return r.UnpublishAndUnsubscribe(ctx, "room1", "u1", "m1")
			},
			args:   []any{"room1", "u1", "m1"},
			params: domain.Params{"room": "room1", "user": "u1", "mediaId": "m1"},
		},
		{
			op:     domain.OpPublish,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Publish(ctx, "u1", "room1", "RTP", p) },
			args:   []any{"u1", "room1", "RTP", p},
			params: domain.Params{"user": "u1", "room": "room1", "type": "RTP", "params": p},
		},
		{
			op:     domain.OpUnpublish,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Unpublish(ctx, "u1", "m1") },
			args:   []any{"u1", "m1"},
			params: domain.Params{"user": "u1", "mediaId": "m1"},
		},
		{
			op: domain.OpSubscribe,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) {
				return r.Subscribe(ctx, "u1", "src1", "WEBRTC", p)
			},
			args:   []any{"u1", "src1", "WEBRTC", p},
			params: domain.Params{"user": "u1", "sourceId": "src1", "type": "WEBRTC", "params": p},
		},
		{
			op:     domain.OpUnsubscribe,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Unsubscribe(ctx, "u1", "m1") },
			args:   []any{"u1", "m1"},
			params: domain.Params{"user": "u1", "mediaId": "m1"},
		},
		{
			op: domain.OpStartRecording,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) {
				return r.StartRecording(ctx, "u1", "m1", "/var/rec/m1.webm")
			},
			args:   []any{"u1", "m1", "/var/rec/m1.webm"},
			params: domain.Params{"userId": "u1", "mediaId": "m1", "recordingPath": "/var/rec/m1.webm"},
		},
		{
			op: domain.OpStopRecording,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) {
				return r.StopRecording(ctx, "u1", "src1", "rec1")
			},
			args:   []any{"u1", "src1", "rec1"},
			params: domain.Params{"userId": "u1", "sourceId": "src1", "recId": "rec1"},
		},
		{
			op:     domain.OpConnect,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Connect(ctx, "m1", "m2", "ALL") },
			args:   []any{"m1", "m2", "ALL"},
			params: domain.Params{"source": "m1", "sink": "m2", "type": "ALL"},
		},
		{
			op:     domain.OpDisconnect,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.Disconnect(ctx, "m1", "m2", "VIDEO") },
			args:   []any{"m1", "m2", "VIDEO"},
			params: domain.Params{"source": "m1", "sink": "m2", "type": "VIDEO"},
		},
		{
			op:     domain.OpAddIceCandidate,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.AddIceCandidate(ctx, "m1", cand) },
			args:   []any{"m1", cand},
			params: domain.Params{"mediaId": "m1", "candidate": cand},
		},
		{
			op:     domain.OpGetUsers,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.GetUsers(ctx, "room1") },
			args:   []any{"room1"},
			params: domain.Params{"room": "room1"},
		},
		{
			op:     domain.OpGetUserMedias,
			invoke: func(ctx context.Context, r *Relay) (json.RawMessage, error) { return r.GetUserMedias(ctx, "u1") },
			args:   []any{"u1"},
			params: domain.Params{"user": "u1"},
		},
	}
}

func TestRelayForwardsArgumentsAndResult(t *testing.T) {
	for _, tt := range relayCases() {
		t.Run(tt.op.String(), func(t *testing.T) {
			media := &fakeMedia{result: json.RawMessage(`{"answer":"` + tt.op.String() + `"}`)}
			r := NewRelay(media, time.Second)

			res, err := tt.invoke(context.Background(), r)
			require.NoError(t, err)

			assert.Equal(t, media.result, res)
			require.Len(t, media.calls, 1)
			assert.Equal(t, tt.op, media.calls[0].method)
			assert.Equal(t, tt.args, media.calls[0].args)
		})
	}
}

func TestRelayWrapsUpstreamFailure(t *testing.T) {
	for _, tt := range relayCases() {
		t.Run(tt.op.String(), func(t *testing.T) {
			media := &fakeMedia{err: &domain.MediaError{Code: 500, Message: "boom", Details: map[string]any{"reason": "x"}}}
			r := NewRelay(media, 0)

			res, err := tt.invoke(context.Background(), r)
			assert.Nil(t, res)

			var opErr *domain.OperationError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, &domain.OperationError{
				Type:      "error",
				Code:      500,
				Message:   "boom",
				Details:   map[string]any{"reason": "x"},
				Operation: tt.op,
				Params:    tt.params,
			}, opErr)
		})
	}
}

func TestRelaySubscribeReturnsUpstreamAnswerUnchanged(t *testing.T) {
	media := &fakeMedia{result: json.RawMessage(`{"mediaId":"m1"}`)}
	r := NewRelay(media, time.Second)

	res, err := r.Subscribe(context.Background(), "u1", "src1", "WEBRTC", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, `{"mediaId":"m1"}`, string(res))
}

func TestRelayUnpublishNotFound(t *testing.T) {
	media := &fakeMedia{err: &domain.MediaError{Code: 404, Message: "not found"}}
	r := NewRelay(media, time.Second)

	_, err := r.Unpublish(context.Background(), "u1", "m1")

	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, &domain.OperationError{
		Type:      "error",
		Code:      404,
		Message:   "not found",
		Details:   nil,
		Operation: domain.OpUnpublish,
		Params:    domain.Params{"user": "u1", "mediaId": "m1"},
	}, opErr)
}

func TestRelayNormalizesTransportErrors(t *testing.T) {
	media := &fakeMedia{err: errors.New("not connected to media control server")}
	r := NewRelay(media, time.Second)

	_, err := r.Leave(context.Background(), "room1", "u1")

	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Nil(t, opErr.Code)
	assert.Equal(t, "not connected to media control server", opErr.Message)
	assert.Equal(t, domain.OpLeave, opErr.Operation)
}

func TestRelayAppliesTimeout(t *testing.T) {
	media := &fakeMedia{block: true}
	r := NewRelay(media, 20*time.Millisecond)

	start := time.Now()
	_, err := r.GetUsers(context.Background(), "room1")

	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, context.DeadlineExceeded.Error(), opErr.Message)
	assert.Less(t, time.Since(start), 2*time.Second)
}
