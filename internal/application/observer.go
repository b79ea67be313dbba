package application

import (
	"time"

	"meetmic/internal/domain"
)

const (
	RoutineSelect  = "select_virtual_microphone"
	RoutinePublish = "publish_active_microphone"
)

type Observer interface {
	ObserveResult(routine string, result domain.Result, elapsed time.Duration)
	ObserveCamera(outcome domain.CameraOutcome)
	SetStreamActive(active bool)
}

type NoopObserver struct{}

func (NoopObserver) ObserveResult(string, domain.Result, time.Duration) {}
func (NoopObserver) ObserveCamera(domain.CameraOutcome)                 {}
func (NoopObserver) SetStreamActive(bool)                               {}
