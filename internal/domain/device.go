package domain

import "context"

type DeviceKind string

const (
	KindAudioInput  DeviceKind = "audioinput"
	KindAudioOutput DeviceKind = "audiooutput"
	KindVideoInput  DeviceKind = "videoinput"
)

// AudioInputDescriptor describes one capture device as reported by enumeration.
// Label may be empty when the host has not been granted media permission yet.
type AudioInputDescriptor struct {
	DeviceID string     `yaml:"device_id" json:"deviceId"`
	Label    string     `yaml:"label" json:"label"`
	Kind     DeviceKind `yaml:"kind" json:"kind"`
}

type TrackState string

const (
	TrackLive  TrackState = "live"
	TrackEnded TrackState = "ended"
)

type AudioTrack struct {
	Label string     `json:"label"`
	State TrackState `json:"readyState"`
}

// Constraints are the processing switches passed with an acquisition request.
type Constraints struct {
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
}

// LoopbackConstraints disables all capture processing. A loopback device
// carries a clean signal that must reach the call unmodified.
func LoopbackConstraints() Constraints {
	return Constraints{}
}

// AcquiredStream is a live handle to a capture device's stream.
type AcquiredStream interface {
	AudioTracks(ctx context.Context) ([]AudioTrack, error)
	Close() error
}
