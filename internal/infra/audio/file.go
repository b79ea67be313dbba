package audio

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"meetmic/internal/domain"
)

// FileBackend serves devices described in a YAML fixture. The file is
// re-read on every enumeration so it can be edited while the host runs.
//
//	devices:
//	  - device_id: cable
//	    label: CABLE Output (VB-Audio Virtual Cable)
//	    kind: audioinput
//	    fail: ""        # acquisition error message, if any
//	    no_tracks: false
type FileBackend struct {
	path string

	mu      sync.Mutex
	devices []fixtureDevice
}

type fixture struct {
	Devices []fixtureDevice `yaml:"devices"`
}

type fixtureDevice struct {
	DeviceID string            `yaml:"device_id"`
	Label    string            `yaml:"label"`
	Kind     domain.DeviceKind `yaml:"kind"`
	Fail     string            `yaml:"fail"`
	NoTracks bool              `yaml:"no_tracks"`
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (f *FileBackend) Name() string {
	return "file"
}

func (f *FileBackend) load() ([]fixtureDevice, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading device fixture: %w", err)
	}

	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing device fixture: %w", err)
	}

	for i := range fx.Devices {
		if fx.Devices[i].Kind == "" {
			fx.Devices[i].Kind = domain.KindAudioInput
		}
	}

	f.mu.Lock()
	f.devices = fx.Devices
	f.mu.Unlock()

	return fx.Devices, nil
}

func (f *FileBackend) EnumerateDevices(ctx context.Context) ([]domain.AudioInputDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices, err := f.load()
	if err != nil {
		return nil, err
	}

	result := make([]domain.AudioInputDescriptor, len(devices))
	for i, d := range devices {
		result[i] = domain.AudioInputDescriptor{DeviceID: d.DeviceID, Label: d.Label, Kind: d.Kind}
	}
	return result, nil
}

func (f *FileBackend) Acquire(ctx context.Context, deviceID string, _ domain.Constraints) (domain.AcquiredStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	devices := f.devices
	f.mu.Unlock()

	if devices == nil {
		var err error
		if devices, err = f.load(); err != nil {
			return nil, err
		}
	}

	for _, d := range devices {
		if d.DeviceID != deviceID || d.Kind != domain.KindAudioInput {
			continue
		}
		if d.Fail != "" {
			return nil, fmt.Errorf("%s", d.Fail)
		}
		stream := &FileStream{}
		if !d.NoTracks {
			stream.label = d.Label
			stream.hasTrack = true
		}
		return stream, nil
	}

	return nil, fmt.Errorf("input device %q not found", deviceID)
}

func (f *FileBackend) Close() error {
	return nil
}

// FileStream is a silent stream standing in for a fixture device.
type FileStream struct {
	label    string
	hasTrack bool

	mu     sync.Mutex
	closed bool
}

func (s *FileStream) AudioTracks(_ context.Context) ([]domain.AudioTrack, error) {
	if !s.hasTrack {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.TrackLive
	if s.closed {
		state = domain.TrackEnded
	}
	return []domain.AudioTrack{{Label: s.label, State: state}}, nil
}

func (s *FileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
