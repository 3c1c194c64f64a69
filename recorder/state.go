package recorder

import (
	"time"

	"murmur/transcriber"
)

type State int

const (
	Idle State = iota
	Recording
	Finalizing
	Dispatching
	Inserting
	Error
)

var stateNames = [...]string{"idle", "recording", "finalizing", "dispatching", "inserting", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Busy reports whether a hotkey press would be ignored.
func (s State) Busy() bool { return s != Idle }

type ErrorKind string

const (
	DeviceUnavailable  ErrorKind = "device_unavailable"
	BackendUnavailable ErrorKind = "backend_unavailable"
	NetworkError       ErrorKind = "network"
	AuthError          ErrorKind = "auth"
	ServerError        ErrorKind = "server"
	EmptyTranscript    ErrorKind = "empty_transcript"
)

func kindFromDispatch(err error) ErrorKind {
	switch transcriber.KindOf(err) {
	case transcriber.KindBackendUnavailable:
		return BackendUnavailable
	case transcriber.KindAuth:
		return AuthError
	case transcriber.KindServer:
		return ServerError
	case transcriber.KindEmpty:
		return EmptyTranscript
	}
	return NetworkError
}

var errorMessages = map[ErrorKind]string{
	DeviceUnavailable:  "Microphone unavailable.",
	BackendUnavailable: "Transcription backend unavailable. Check the configuration.",
	NetworkError:       "Transcription server unreachable.",
	AuthError:          "Transcription server rejected the token.",
	ServerError:        "Transcription server error.",
	EmptyTranscript:    "No speech detected.",
}

// Snapshot is what the controller publishes after every transition and on
// each tick while recording. Levels is a private copy.
type Snapshot struct {
	State     State
	ErrorKind ErrorKind
	SessionID string
	Device    string
	Elapsed   time.Duration
	Levels    []float64
}

func (s Snapshot) Label() string {
	if s.State == Error {
		return "error(" + string(s.ErrorKind) + ")"
	}
	return s.State.String()
}
