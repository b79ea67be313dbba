package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jfreymuth/pulse"

	"meetmic/internal/domain"
	"meetmic/internal/infra"
)

// Backend enumerates PulseAudio (or PipeWire-pulse) sources and records
// from the matched one. Device IDs are source names; labels are the
// human-readable descriptions.
type Backend struct {
	clientName string
	sampleRate int
	logger     *slog.Logger

	mu     sync.Mutex
	client *pulse.Client
}

func NewBackend(clientName string, sampleRate int, logger *slog.Logger) *Backend {
	return &Backend{
		clientName: clientName,
		sampleRate: sampleRate,
		logger:     logger.With("component", "pulse"),
	}
}

func (b *Backend) Name() string {
	return "pulse"
}

// connect lazily establishes the server connection, retrying while the
// daemon is still starting.
func (b *Backend) connect(ctx context.Context) (*pulse.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	var client *pulse.Client
	err := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		c, err := pulse.NewClient(pulse.ClientApplicationName(b.clientName))
		if err != nil {
			b.logger.Warn("failed to establish PulseAudio connection", "error", err)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("establish PulseAudio connection: %w", err)
	}

	b.client = client
	b.logger.Debug("connected to PulseAudio")
	return client, nil
}

func (b *Backend) EnumerateDevices(ctx context.Context) ([]domain.AudioInputDescriptor, error) {
	client, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	sources, err := client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("list PulseAudio sources: %w", err)
	}

	result := make([]domain.AudioInputDescriptor, 0, len(sources))
	for _, s := range sources {
		result = append(result, domain.AudioInputDescriptor{
			DeviceID: s.ID(),
			Label:    s.Name(),
			Kind:     domain.KindAudioInput,
		})
	}

	return result, nil
}

func (b *Backend) Acquire(ctx context.Context, deviceID string, c domain.Constraints) (domain.AcquiredStream, error) {
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		return nil, fmt.Errorf("pulse records raw source data, processing constraints are not supported")
	}

	client, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := client.SourceByID(deviceID)
	if err != nil {
		return nil, fmt.Errorf("get PulseAudio source %s: %w", deviceID, err)
	}

	stream := &Stream{label: source.Name()}

	record, err := client.NewRecord(
		pulse.Int16Writer(stream.write),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(b.sampleRate),
		pulse.RecordMediaName("meetmic virtual microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("open record stream on %s: %w", source.Name(), err)
	}

	stream.record = record
	record.Start()

	b.logger.Info("recording from source", "source", source.ID(), "label", source.Name(), "sampleRate", b.sampleRate)

	return stream, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		b.client.Close()
		b.client = nil
		b.logger.Debug("released PulseAudio connection")
	}
	return nil
}

// Stream is a running mono record stream. Captured samples are dropped;
// the record stream only keeps the source acquired.
type Stream struct {
	label  string
	record *pulse.RecordStream

	mu     sync.Mutex
	closed bool
}

func (s *Stream) write(buf []int16) (int, error) {
	return len(buf), nil
}

func (s *Stream) AudioTracks(_ context.Context) ([]domain.AudioTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.TrackLive
	if s.closed || !s.record.Running() {
		state = domain.TrackEnded
	}
	if err := s.record.Error(); err != nil {
		return nil, fmt.Errorf("record stream failed: %w", err)
	}
	return []domain.AudioTrack{{Label: s.label, State: state}}, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.record.Stop()
	s.record.Close()
	return nil
}
