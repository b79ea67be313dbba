package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"meetmic/internal/domain"
	"meetmic/internal/infra"
)

const releaseTimeout = 5 * time.Second

type LaunchOptions struct {
	ExecPath    string
	UserDataDir string
	Headless    bool
	MeetingURL  string
}

// Page drives the conferencing client tab over the DevTools protocol. It
// enumerates and acquires devices from inside the page, so acquired
// streams live in the page and are referenced by handle.
type Page struct {
	ctx      context.Context
	cancel   context.CancelFunc
	scripts  *scriptLoader
	evaluate func(ctx context.Context, expr string, out any) error
	logger   *slog.Logger
}

// Launch starts a browser with media permission prompts auto-accepted and
// opens the meeting URL, if any.
func Launch(ctx context.Context, opts LaunchOptions, attempts int, logger *slog.Logger) (*Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	return open(ctx, attempts, opts.MeetingURL, logger, func() (context.Context, context.CancelFunc) {
		return chromedp.NewExecAllocator(context.Background(), allocOpts...)
	})
}

// Connect attaches to an already running browser's DevTools endpoint.
func Connect(ctx context.Context, debuggerURL, meetingURL string, attempts int, logger *slog.Logger) (*Page, error) {
	return open(ctx, attempts, meetingURL, logger, func() (context.Context, context.CancelFunc) {
		return chromedp.NewRemoteAllocator(context.Background(), debuggerURL)
	})
}

func open(
	ctx context.Context,
	attempts int,
	meetingURL string,
	logger *slog.Logger,
	allocator func() (context.Context, context.CancelFunc),
) (*Page, error) {
	logger = logger.With("component", "browser")

	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = attempts
	retry.InitialDelay = 500 * time.Millisecond

	var page *Page
	err := infra.WithRetry(ctx, retry, func() error {
		allocCtx, cancelAlloc := allocator()
		tabCtx, cancelTab := chromedp.NewContext(allocCtx,
			chromedp.WithErrorf(func(format string, args ...any) {
				logger.Debug(fmt.Sprintf(format, args...))
			}),
		)
		cancel := func() {
			cancelTab()
			cancelAlloc()
		}

		p := &Page{
			ctx:     tabCtx,
			cancel:  cancel,
			scripts: newScriptLoader(),
			logger:  logger,
		}
		p.evaluate = p.evaluateInTab

		// The first Run allocates the browser and binds it to tabCtx, so it
		// must not get a shorter-lived child context.
		abort := context.AfterFunc(ctx, cancel)
		err := chromedp.Run(tabCtx)
		abort()
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err == nil && meetingURL != "" {
			err = p.run(ctx, chromedp.Navigate(meetingURL))
		}
		if err != nil {
			cancel()
			logger.Warn("opening browser tab", "error", err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		page = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening browser page: %w", err)
	}

	logger.Info("browser page ready", "url", meetingURL)
	return page, nil
}

func (p *Page) Name() string {
	return "browser"
}

// run executes actions on the tab, aborting them when ctx ends without
// closing the tab itself.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) call(ctx context.Context, script string, arg, out any) error {
	expr, err := p.scripts.call(script, arg)
	if err != nil {
		return err
	}

	if err := p.evaluate(ctx, expr, out); err != nil {
		return scriptError(err)
	}
	return nil
}

func (p *Page) evaluateInTab(ctx context.Context, expr string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expr, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *Page) EnumerateDevices(ctx context.Context) ([]domain.AudioInputDescriptor, error) {
	var devices []domain.AudioInputDescriptor
	if err := p.call(ctx, "enumerate_devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

type acquireRequest struct {
	Handle   string `json:"handle"`
	DeviceID string `json:"deviceId"`
	domain.Constraints
}

type handleRequest struct {
	Handle string `json:"handle"`
}

// Acquire runs getUserMedia in the page under a fresh handle. If the call
// fails on this side, e.g. because ctx ended while the page was still
// waiting, the handle is released so a late stream is stopped in the page
// instead of being registered.
func (p *Page) Acquire(ctx context.Context, deviceID string, c domain.Constraints) (domain.AcquiredStream, error) {
	stream := &pageStream{page: p, handle: "stream-" + uuid.NewString()}

	var handle string
	err := p.call(ctx, "acquire_device", acquireRequest{Handle: stream.handle, DeviceID: deviceID, Constraints: c}, &handle)
	if err != nil {
		if releaseErr := stream.Close(); releaseErr != nil {
			p.logger.Warn("releasing abandoned acquisition", "handle", stream.handle, "error", releaseErr)
		}
		return nil, err
	}

	p.logger.Debug("page stream acquired", "handle", handle, "device_id", deviceID)
	return stream, nil
}

func (p *Page) ButtonLabels(ctx context.Context) ([]string, error) {
	var labels []string
	if err := p.call(ctx, "button_labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (p *Page) ClickButton(ctx context.Context, index int) error {
	var clicked bool
	return p.call(ctx, "click_button", struct {
		Index int `json:"index"`
	}{Index: index}, &clicked)
}

// Close closes the tab and, for launched browsers, the browser.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

// pageStream is a MediaStream held in the page's stream registry.
type pageStream struct {
	page   *Page
	handle string

	closeOnce sync.Once
	closeErr  error
}

func (s *pageStream) AudioTracks(ctx context.Context) ([]domain.AudioTrack, error) {
	var tracks []domain.AudioTrack
	if err := s.page.call(ctx, "stream_tracks", handleRequest{Handle: s.handle}, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (s *pageStream) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		var released bool
		s.closeErr = s.page.call(ctx, "release_stream", handleRequest{Handle: s.handle}, &released)
	})
	return s.closeErr
}

// scriptError reduces a page exception to its message, e.g.
// "NotReadableError: Could not start audio source".
func scriptError(err error) error {
	var exc *runtime.ExceptionDetails
	if !errors.As(err, &exc) {
		return err
	}

	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	if first, _, found := strings.Cut(msg, "\n"); found {
		msg = first
	}
	msg = strings.TrimPrefix(msg, "Uncaught (in promise) ")
	msg = strings.TrimPrefix(msg, "Uncaught ")
	return errors.New(msg)
}
