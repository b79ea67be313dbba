package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meetmic/internal/domain"
)

// Selector finds a virtual microphone among the host's audio inputs and
// acquires it into the session slot.
type Selector struct {
	devices        DeviceEnumerator
	media          MediaAcquirer
	matcher        *Matcher
	session        *Session
	acquireTimeout time.Duration
	logger         *slog.Logger
}

func NewSelector(
	devices DeviceEnumerator,
	media MediaAcquirer,
	matcher *Matcher,
	session *Session,
	logger *slog.Logger,
) *Selector {
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	return &Selector{
		devices: devices,
		media:   media,
		matcher: matcher,
		session: session,
		logger:  logger,
	}
}

// WithAcquireTimeout bounds the acquisition call. Zero means no bound.
func (s *Selector) WithAcquireTimeout(d time.Duration) *Selector {
	s.acquireTimeout = d
	return s
}

func (s *Selector) SelectAndActivate(ctx context.Context) (result domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("device selection panicked", "panic", r)
			result = domain.Failure(domain.KindInternalError, fmt.Sprint(r))
		}
	}()

	release, err := s.session.lockWriter(ctx)
	if err != nil {
		return domain.Failure(domain.KindInternalError, fmt.Sprintf("waiting for session: %v", err))
	}
	defer release()

	if s.session.isClosed() {
		return domain.Failure(domain.KindInternalError, errSessionClosed.Error())
	}

	devices, err := s.devices.EnumerateDevices(ctx)
	if err != nil {
		return domain.Failure(domain.KindInternalError, fmt.Sprintf("enumerating devices: %v", err))
	}

	candidates := audioInputs(devices)
	labels := make([]string, len(candidates))
	for i, d := range candidates {
		labels[i] = d.Label
	}
	s.logger.Debug("available audio inputs", "labels", labels)

	device, ok := s.matcher.First(candidates)
	if !ok {
		s.logger.Warn("virtual microphone not found", "candidates", len(candidates))
		result = domain.Failure(domain.KindDeviceNotFound,
			"Virtual microphone not found. Available: "+strings.Join(labels, ", "))
		result.Candidates = labels
		return result
	}

	acquireCtx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}

	stream, err := s.media.Acquire(acquireCtx, device.DeviceID, domain.LoopbackConstraints())
	if err != nil {
		s.logger.Warn("acquiring virtual microphone", "label", device.Label, "error", err)
		return domain.Failure(domain.KindAcquisitionFailed, err.Error())
	}
	if stream == nil {
		return domain.Failure(domain.KindAcquisitionFailed, "no stream returned for "+device.Label)
	}

	if err := s.session.store(stream, device.DeviceID); err != nil {
		s.logger.Warn("discarding virtual microphone", "label", device.Label, "error", err)
		return domain.Failure(domain.KindInternalError, err.Error())
	}
	s.logger.Info("virtual microphone activated", "label", device.Label, "device_id", device.DeviceID)

	return domain.Success(device.Label, "")
}

func audioInputs(devices []domain.AudioInputDescriptor) []domain.AudioInputDescriptor {
	result := make([]domain.AudioInputDescriptor, 0, len(devices))
	for _, d := range devices {
		if d.Kind == domain.KindAudioInput {
			result = append(result, d)
		}
	}
	return result
}
