package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind is a class of asynchronous notification pushed by the media
// control server.
type EventKind string

const (
	EventMediaStateChanged       EventKind = "MediaStateChanged"
	EventMediaFlowInStateChange  EventKind = "MediaFlowInStateChange"
	EventMediaFlowOutStateChange EventKind = "MediaFlowOutStateChange"
	EventOnIceCandidate          EventKind = "OnIceCandidate"
	EventMediaServerOffline      EventKind = "MediaServerOffline"
	EventRecording               EventKind = "Recording"
)

var eventKinds = []EventKind{
	EventMediaStateChanged,
	EventMediaFlowInStateChange,
	EventMediaFlowOutStateChange,
	EventOnIceCandidate,
	EventMediaServerOffline,
	EventRecording,
}

func ParseEventKind(s string) (EventKind, error) {
	for _, k := range eventKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", s)
}

// Tag correlates an event subscription with the events it should receive.
type Tag struct {
	Kind    EventKind
	MediaID string
}

const tagSeparator = ":"

func (t Tag) String() string {
	return string(t.Kind) + tagSeparator + t.MediaID
}

// ParseTag is the inverse of Tag.String. The media id may itself contain
// the separator; only the first one splits.
func ParseTag(s string) (Tag, error) {
	kind, mediaID, ok := strings.Cut(s, tagSeparator)
	if !ok {
		return Tag{}, fmt.Errorf("malformed event tag %q", s)
	}
	k, err := ParseEventKind(kind)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Kind: k, MediaID: mediaID}, nil
}

type Event struct {
	Tag  Tag
	Data json.RawMessage
}
