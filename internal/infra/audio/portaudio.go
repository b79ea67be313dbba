//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"meetmic/internal/domain"
)

// PortAudioBackend enumerates and opens host capture devices through
// PortAudio. Device IDs are "<host api>/<device name>".
type PortAudioBackend struct {
	sampleRate      int
	framesPerBuffer int
	logger          *slog.Logger

	mu          sync.Mutex
	initialized bool
}

func NewPortAudioBackend(sampleRate, framesPerBuffer int, logger *slog.Logger) *PortAudioBackend {
	return &PortAudioBackend{
		sampleRate:      sampleRate,
		framesPerBuffer: framesPerBuffer,
		logger:          logger,
	}
}

func (p *PortAudioBackend) Name() string {
	return "portaudio"
}

func (p *PortAudioBackend) ensureInitialized() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	p.initialized = true
	return nil
}

func (p *PortAudioBackend) EnumerateDevices(_ context.Context) ([]domain.AudioInputDescriptor, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	result := make([]domain.AudioInputDescriptor, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, domain.AudioInputDescriptor{
				DeviceID: deviceID(d),
				Label:    d.Name,
				Kind:     domain.KindAudioInput,
			})
		}
		if d.MaxOutputChannels > 0 {
			result = append(result, domain.AudioInputDescriptor{
				DeviceID: deviceID(d),
				Label:    d.Name,
				Kind:     domain.KindAudioOutput,
			})
		}
	}

	return result, nil
}

func (p *PortAudioBackend) Acquire(ctx context.Context, id string, c domain.Constraints) (domain.AcquiredStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		return nil, fmt.Errorf("portaudio captures raw input, processing constraints are not supported")
	}
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var device *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels > 0 && deviceID(d) == id {
			device = d
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("input device %q not found", id)
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(p.sampleRate)
	params.FramesPerBuffer = p.framesPerBuffer

	// Samples are drained and dropped; the stream only has to stay open
	// for the device to count as acquired.
	stream, err := portaudio.OpenStream(params, func(in []int16) {})
	if err != nil {
		return nil, fmt.Errorf("opening stream on %s: %w", device.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("starting stream on %s: %w", device.Name, err)
	}

	p.logger.Info("portaudio input opened", "device", device.Name, "sampleRate", p.sampleRate)

	return &PortAudioStream{
		stream: stream,
		label:  device.Name,
	}, nil
}

func (p *PortAudioBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}

func deviceID(d *portaudio.DeviceInfo) string {
	host := "default"
	if d.HostApi != nil {
		host = d.HostApi.Name
	}
	return host + "/" + d.Name
}

// PortAudioStream is a running mono int16 capture stream.
type PortAudioStream struct {
	stream *portaudio.Stream
	label  string

	mu     sync.Mutex
	closed bool
}

func (s *PortAudioStream) AudioTracks(_ context.Context) ([]domain.AudioTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.TrackLive
	if s.closed {
		state = domain.TrackEnded
	}
	return []domain.AudioTrack{{Label: s.label, State: state}}, nil
}

func (s *PortAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return fmt.Errorf("stopping stream: %w", err)
	}
	return s.stream.Close()
}
