package application

import (
	"context"

	"meetmic/internal/domain"
)

// DeviceEnumerator lists the devices visible to the host. Entries of every
// kind may be returned; callers filter.
type DeviceEnumerator interface {
	EnumerateDevices(ctx context.Context) ([]domain.AudioInputDescriptor, error)
}

type MediaAcquirer interface {
	Acquire(ctx context.Context, deviceID string, constraints domain.Constraints) (domain.AcquiredStream, error)
}

type MediaBackend interface {
	DeviceEnumerator
	MediaAcquirer
	Name() string
	Close() error
}

// ButtonPanel exposes the clickable controls of the conferencing page in
// document order.
type ButtonPanel interface {
	ButtonLabels(ctx context.Context) ([]string, error)
	ClickButton(ctx context.Context, index int) error
}
