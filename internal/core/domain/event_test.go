package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventKind(t *testing.T) {
	k, err := ParseEventKind("OnIceCandidate")
	require.NoError(t, err)
	assert.Equal(t, EventOnIceCandidate, k)

	_, err = ParseEventKind("onicecandidate")
	assert.Error(t, err)
}

func TestTagRoundTrip(t *testing.T) {
	tests := []Tag{
		{Kind: EventMediaStateChanged, MediaID: "m1"},
		{Kind: EventRecording, MediaID: "room:42:rec"},
		{Kind: EventMediaServerOffline, MediaID: ""},
	}
	for _, tag := range tests {
		t.Run(tag.String(), func(t *testing.T) {
			got, err := ParseTag(tag.String())
			require.NoError(t, err)
			assert.Equal(t, tag, got)
		})
	}
}

func TestParseTagRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "MediaStateChanged", "Bogus:m1"} {
		_, err := ParseTag(s)
		assert.Error(t, err, s)
	}
}
