//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"meetmic/internal/domain"
)

var errPortAudioUnavailable = fmt.Errorf("portaudio backend not available: rebuild with -tags portaudio")

// PortAudioBackend stub when portaudio is not available
type PortAudioBackend struct {
	logger *slog.Logger
}

func NewPortAudioBackend(sampleRate, framesPerBuffer int, logger *slog.Logger) *PortAudioBackend {
	return &PortAudioBackend{logger: logger}
}

func (p *PortAudioBackend) Name() string {
	return "portaudio"
}

func (p *PortAudioBackend) EnumerateDevices(_ context.Context) ([]domain.AudioInputDescriptor, error) {
	return nil, errPortAudioUnavailable
}

func (p *PortAudioBackend) Acquire(_ context.Context, _ string, _ domain.Constraints) (domain.AcquiredStream, error) {
	return nil, errPortAudioUnavailable
}

func (p *PortAudioBackend) Close() error {
	return nil
}
