package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"meetmic/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStream struct {
	tracks  []domain.AudioTrack
	err     error
	panicOn string

	mu     sync.Mutex
	closed bool
}

func (m *mockStream) AudioTracks(_ context.Context) ([]domain.AudioTrack, error) {
	if m.panicOn != "" {
		panic(m.panicOn)
	}
	return m.tracks, m.err
}

func (m *mockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStream) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type acquireCall struct {
	deviceID    string
	constraints domain.Constraints
}

type mockBackend struct {
	devices      []domain.AudioInputDescriptor
	enumerateErr error
	acquireErr   error
	// block makes Acquire wait for the context to finish.
	block bool
	// When hold is set, Acquire signals entered and waits for hold to close.
	entered chan struct{}
	hold    chan struct{}
	// streams are handed out in order; a fresh single-track stream is used
	// once they run out.
	streams []*mockStream

	mu    sync.Mutex
	calls []acquireCall
}

func (m *mockBackend) EnumerateDevices(_ context.Context) ([]domain.AudioInputDescriptor, error) {
	return m.devices, m.enumerateErr
}

func (m *mockBackend) Acquire(ctx context.Context, deviceID string, c domain.Constraints) (domain.AcquiredStream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, acquireCall{deviceID: deviceID, constraints: c})
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.hold != nil {
		m.entered <- struct{}{}
		<-m.hold
	}
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) > 0 {
		s := m.streams[0]
		m.streams = m.streams[1:]
		return s, nil
	}
	label := deviceID
	for _, d := range m.devices {
		if d.DeviceID == deviceID {
			label = d.Label
		}
	}
	return &mockStream{tracks: []domain.AudioTrack{{Label: label, State: domain.TrackLive}}}, nil
}

func (m *mockBackend) acquireCalls() []acquireCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]acquireCall, len(m.calls))
	copy(result, m.calls)
	return result
}

type mockPanel struct {
	labels   []string
	listErr  error
	clickErr error
	clicked  []int
}

func (m *mockPanel) ButtonLabels(_ context.Context) ([]string, error) {
	return m.labels, m.listErr
}

func (m *mockPanel) ClickButton(_ context.Context, index int) error {
	if m.clickErr != nil {
		return m.clickErr
	}
	m.clicked = append(m.clicked, index)
	return nil
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, message string) error {
	r.messages = append(r.messages, message)
	return r.err
}

type observed struct {
	routine string
	result  domain.Result
}

type recordingObserver struct {
	results []observed
	cameras []domain.CameraOutcome
	active  bool
}

func (r *recordingObserver) ObserveResult(routine string, result domain.Result, _ time.Duration) {
	r.results = append(r.results, observed{routine: routine, result: result})
}

func (r *recordingObserver) ObserveCamera(outcome domain.CameraOutcome) {
	r.cameras = append(r.cameras, outcome)
}

func (r *recordingObserver) SetStreamActive(active bool) {
	r.active = active
}

var errDeviceBusy = errors.New("NotReadableError: Could not start audio source")

func audioInput(id, label string) domain.AudioInputDescriptor {
	return domain.AudioInputDescriptor{DeviceID: id, Label: label, Kind: domain.KindAudioInput}
}
