package domain

type Operation string

const (
	OpJoin                    Operation = "join"
	OpLeave                   Operation = "leave"
	OpPublishAndSubscribe     Operation = "publishAndSubscribe"
	OpUnpublishAndUnsubscribe Operation = "unpublishAndUnsubscribe"
	OpPublish                 Operation = "publish"
	OpUnpublish               Operation = "unpublish"
	OpSubscribe               Operation = "subscribe"
	OpUnsubscribe             Operation = "unsubscribe"
	OpStartRecording          Operation = "startRecording"
	OpStopRecording           Operation = "stopRecording"
	OpConnect                 Operation = "connect"
	OpDisconnect              Operation = "disconnect"
	OpAddIceCandidate         Operation = "addIceCandidate"
	OpGetUsers                Operation = "getUsers"
	OpGetUserMedias           Operation = "getUserMedias"
	OpOnEvent                 Operation = "onEvent"
)

var operations = map[Operation]struct{}{
	OpJoin:                    {},
	OpLeave:                   {},
	OpPublishAndSubscribe:     {},
	OpUnpublishAndUnsubscribe: {},
	OpPublish:                 {},
	OpUnpublish:               {},
	OpSubscribe:               {},
	OpUnsubscribe:             {},
	OpStartRecording:          {},
	OpStopRecording:           {},
	OpConnect:                 {},
	OpDisconnect:              {},
	OpAddIceCandidate:         {},
	OpGetUsers:                {},
	OpGetUserMedias:           {},
	OpOnEvent:                 {},
}

// ParseOperation reports whether s names an operation clients may invoke.
func ParseOperation(s string) (Operation, bool) {
	op := Operation(s)
	_, ok := operations[op]
	return op, ok
}

func (o Operation) String() string {
	return string(o)
}
