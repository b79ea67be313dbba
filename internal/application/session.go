package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"meetmic/internal/domain"
)

var errSessionClosed = errors.New("session closed")

// Session owns the stream slot shared by the selector and the publisher.
// Writes go through an exclusive writer guard; reads only take the RW lock.
type Session struct {
	writer chan struct{}

	mu       sync.RWMutex
	stream   domain.AcquiredStream
	deviceID string
	closed   bool

	logger *slog.Logger
}

func NewSession(logger *slog.Logger) *Session {
	return &Session{
		writer: make(chan struct{}, 1),
		logger: logger,
	}
}

// lockWriter blocks until the caller is the only writer or ctx is done.
func (s *Session) lockWriter(ctx context.Context) (func(), error) {
	select {
	case s.writer <- struct{}{}:
		return func() { <-s.writer }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// store replaces the slot contents and releases the previous stream. A
// closed session refuses the stream and releases it instead.
func (s *Session) store(stream domain.AcquiredStream, deviceID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := stream.Close(); err != nil {
			s.logger.Warn("releasing stream acquired after teardown", "error", err)
		}
		return errSessionClosed
	}
	prev := s.stream
	s.stream = stream
	s.deviceID = deviceID
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			s.logger.Warn("releasing replaced stream", "error", err)
		}
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Current returns the stored stream and the device that produced it.
func (s *Session) Current() (domain.AcquiredStream, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream, s.deviceID, s.stream != nil
}

func (s *Session) Active() bool {
	_, _, ok := s.Current()
	return ok
}

// Close tears the session down, clearing the slot and releasing its stream.
// Selections still in flight release what they acquire.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	stream := s.stream
	s.stream = nil
	s.deviceID = ""
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Close()
}
