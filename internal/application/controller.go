package application

import (
	"context"
	"log/slog"
	"time"

	"meetmic/internal/domain"
)

// Controller is the entry point the host drives. It runs the routines and
// reports their outcomes to the observer and, on failure, the notifier.
type Controller struct {
	selector  *Selector
	publisher *Publisher
	camera    *CameraToggle
	session   *Session
	notifier  Notifier
	observer  Observer
	logger    *slog.Logger
}

// NewController wires the routines. camera may be nil when the backend has
// no page to operate on.
func NewController(
	selector *Selector,
	publisher *Publisher,
	camera *CameraToggle,
	session *Session,
	notifier Notifier,
	observer Observer,
	logger *slog.Logger,
) *Controller {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Controller{
		selector:  selector,
		publisher: publisher,
		camera:    camera,
		session:   session,
		notifier:  notifier,
		observer:  observer,
		logger:    logger,
	}
}

func (c *Controller) SetupVirtualMicrophone(ctx context.Context) domain.Result {
	start := time.Now()
	result := c.selector.SelectAndActivate(ctx)
	c.report(ctx, RoutineSelect, result, time.Since(start))
	return result
}

func (c *Controller) PublishActiveMicrophone(ctx context.Context) domain.Result {
	start := time.Now()
	result := c.publisher.PublishActiveMicrophone(ctx)
	c.report(ctx, RoutinePublish, result, time.Since(start))
	return result
}

// Activate selects the virtual microphone and, if that succeeded, publishes
// it. The publish result is the zero Result when selection failed.
func (c *Controller) Activate(ctx context.Context) (selected, published domain.Result) {
	selected = c.SetupVirtualMicrophone(ctx)
	if !selected.OK() {
		return selected, domain.Result{}
	}
	return selected, c.PublishActiveMicrophone(ctx)
}

func (c *Controller) DisableCamera(ctx context.Context) domain.CameraOutcome {
	outcome := domain.CameraNotFound
	if c.camera != nil {
		outcome = c.camera.DisableCamera(ctx)
	}
	c.observer.ObserveCamera(outcome)
	c.logger.Info("camera routine finished", "outcome", outcome.String())
	return outcome
}

// Close tears down the session and releases its stream.
func (c *Controller) Close() error {
	err := c.session.Close()
	c.observer.SetStreamActive(false)
	return err
}

func (c *Controller) report(ctx context.Context, routine string, result domain.Result, elapsed time.Duration) {
	c.observer.ObserveResult(routine, result, elapsed)
	c.observer.SetStreamActive(c.session.Active())

	if result.OK() {
		c.logger.Info("routine succeeded", "routine", routine, "result", result.String())
		return
	}

	c.logger.Warn("routine failed",
		"routine", routine,
		"kind", result.Kind,
		"message", result.Message,
	)
	if err := c.notifier.Notify(ctx, result.String()); err != nil {
		c.logger.Error("notifying failure", "error", err)
	}
}
