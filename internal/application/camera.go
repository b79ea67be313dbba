package application

import (
	"context"
	"log/slog"
	"strings"

	"meetmic/internal/domain"
)

type cameraAction int

const (
	cameraSkip cameraAction = iota
	cameraClick
	cameraAlreadyOff
)

// CameraToggle turns the camera off through the page's camera button.
type CameraToggle struct {
	panel  ButtonPanel
	logger *slog.Logger
}

func NewCameraToggle(panel ButtonPanel, logger *slog.Logger) *CameraToggle {
	return &CameraToggle{
		panel:  panel,
		logger: logger,
	}
}

func (c *CameraToggle) DisableCamera(ctx context.Context) domain.CameraOutcome {
	labels, err := c.panel.ButtonLabels(ctx)
	if err != nil {
		c.logger.Warn("listing page buttons", "error", err)
		return domain.CameraNotFound
	}

	for i, label := range labels {
		switch actionFor(label) {
		case cameraClick:
			if err := c.panel.ClickButton(ctx, i); err != nil {
				c.logger.Warn("clicking camera button", "label", label, "error", err)
				return domain.CameraNotFound
			}
			c.logger.Info("camera turned off", "label", label)
			return domain.CameraTurnedOff
		case cameraAlreadyOff:
			c.logger.Debug("camera already off", "label", label)
			return domain.CameraAlreadyOff
		}
	}

	return domain.CameraNotFound
}

// actionFor decides from an accessible label whether the button turns the
// camera off, reports it as already off, or is unrelated.
func actionFor(label string) cameraAction {
	l := strings.ToLower(label)
	if !strings.Contains(l, "camera") {
		return cameraSkip
	}
	if strings.Contains(l, "turn off") || !strings.Contains(l, "off") {
		return cameraClick
	}
	if strings.Contains(l, "turn on") || strings.Contains(l, "off") {
		return cameraAlreadyOff
	}
	return cameraSkip
}
