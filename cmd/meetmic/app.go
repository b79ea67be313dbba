package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"meetmic/config"
	"meetmic/internal/application"
	"meetmic/internal/domain"
	"meetmic/internal/infra/audio"
	"meetmic/internal/infra/browser"
	"meetmic/internal/infra/control"
	"meetmic/internal/infra/pulse"
	"meetmic/internal/infra/pushover"
	"meetmic/internal/metrics"
)

type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	backend    application.MediaBackend
	matcher    *application.Matcher
	metrics    *metrics.Metrics
	controller *application.Controller
}

// withApp builds the application from the config flag, runs fn and tears
// the session and backend down afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Log)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	timeout, err := cfg.AcquireTimeout()
	if err != nil {
		return nil, err
	}

	backend, err := createBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", cfg.Backend.Kind, err)
	}

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	} else {
		notifier = &application.NoopNotifier{}
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		matcher: application.NewMatcher(cfg.Matcher.Fragments),
	}

	var observer application.Observer = application.NoopObserver{}
	if cfg.MetricsEnabled() {
		a.metrics = metrics.NewMetrics()
		observer = a.metrics
	}

	var camera *application.CameraToggle
	if panel, ok := backend.(application.ButtonPanel); ok {
		camera = application.NewCameraToggle(panel, logger)
	}

	session := application.NewSession(logger)
	selector := application.NewSelector(backend, backend, a.matcher, session, logger).
		WithAcquireTimeout(timeout)
	publisher := application.NewPublisher(session, logger)

	a.controller = application.NewController(selector, publisher, camera, session, notifier, observer, logger)

	logger.Info("meetmic ready",
		"backend", backend.Name(),
		"fragments", strings.Join(a.matcher.Fragments(), ", "),
		"acquire_timeout", timeout,
	)
	return a, nil
}

func (a *app) close() {
	if err := a.controller.Close(); err != nil {
		a.logger.Warn("closing session", "error", err)
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("closing backend", "error", err)
	}
}

func createBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (application.MediaBackend, error) {
	switch cfg.Backend.Kind {
	case config.BackendPortAudio:
		return audio.NewPortAudioBackend(cfg.PortAudio.SampleRate, cfg.PortAudio.FramesPerBuffer, logger), nil
	case config.BackendPulse:
		return pulse.NewBackend(cfg.Pulse.ClientName, cfg.Pulse.SampleRate, logger), nil
	case config.BackendFile:
		return audio.NewFileBackend(cfg.File.Path), nil
	case config.BackendBrowser:
		if cfg.Browser.Mode == config.BrowserRemote {
			return browser.Connect(ctx, cfg.Browser.DebuggerURL, cfg.Browser.MeetingURL, cfg.Browser.ConnectAttempts, logger)
		}
		return browser.Launch(ctx, browser.LaunchOptions{
			ExecPath:    cfg.Browser.ExecPath,
			UserDataDir: cfg.Browser.UserDataDir,
			Headless:    cfg.Browser.Headless,
			MeetingURL:  cfg.Browser.MeetingURL,
		}, cfg.Browser.ConnectAttempts, logger)
	default:
		return nil, fmt.Errorf("unknown backend kind: %q", cfg.Backend.Kind)
	}
}

func listDevices(ctx context.Context, a *app) error {
	devices, err := a.backend.EnumerateDevices(ctx)
	if err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}

	found := 0
	for _, d := range devices {
		if d.Kind != domain.KindAudioInput {
			continue
		}
		found++
		marker := " "
		if a.matcher.Match(d.Label) {
			marker = "*"
		}
		fmt.Printf("%s %-40s %s\n", marker, d.Label, d.DeviceID)
	}

	if found == 0 {
		fmt.Println("no audio inputs")
	}
	return nil
}

func serve(ctx context.Context, a *app) error {
	var requests control.RequestObserver
	if a.metrics != nil {
		requests = a.metrics
	}

	server := control.NewServer(
		a.cfg.Control.HTTPAddr,
		a.cfg.Control.AuthToken,
		a.cfg.Control.RatePerMinute,
		a.controller,
		requests,
		a.logger,
	)
	if a.metrics != nil {
		server.Mount("GET /metrics", a.metrics.Handler())
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting control server: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	return server.Stop()
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
