package browser

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"meetmic/internal/domain"
)

// fakeTab answers page calls without a browser. Acquisitions either
// succeed immediately or wait for the caller's context.
type fakeTab struct {
	hangAcquire bool

	mu    sync.Mutex
	calls []string
	args  []map[string]any
}

func (f *fakeTab) evaluate(ctx context.Context, expr string, out any) error {
	name, arg := splitCall(expr)

	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, arg)
	f.mu.Unlock()

	switch name {
	case "acquire_device":
		if f.hangAcquire {
			<-ctx.Done()
			return ctx.Err()
		}
		*out.(*string) = arg["handle"].(string)
	case "release_stream":
		*out.(*bool) = true
	}
	return nil
}

func (f *fakeTab) recorded() ([]string, []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]map[string]any(nil), f.args...)
}

// splitCall recovers the script name and argument from a call expression
// built by scriptLoader.call.
func splitCall(expr string) (string, map[string]any) {
	name := "unknown"
	for _, n := range []string{"acquire_device", "release_stream", "stream_tracks"} {
		src, _ := newScriptLoader().load(n)
		if strings.HasPrefix(expr, "("+src+")") {
			name = n
		}
	}

	var arg map[string]any
	if i := strings.LastIndex(expr, ")({"); i >= 0 {
		_ = json.Unmarshal([]byte(expr[i+2:len(expr)-1]), &arg)
	}
	return name, arg
}

func newFakePage(tab *fakeTab) *Page {
	return &Page{
		scripts:  newScriptLoader(),
		evaluate: tab.evaluate,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPage_AcquireAbandonedReleasesHandle(t *testing.T) {
	tab := &fakeTab{hangAcquire: true}
	page := newFakePage(tab)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	stream, err := page.Acquire(ctx, "cable", domain.LoopbackConstraints())
	if err == nil {
		t.Fatalf("expected error, got stream %v", stream)
	}

	calls, args := tab.recorded()
	if len(calls) != 2 || calls[0] != "acquire_device" || calls[1] != "release_stream" {
		t.Fatalf("calls: got %v", calls)
	}
	handle, _ := args[0]["handle"].(string)
	if handle == "" {
		t.Fatal("acquisition should carry a handle")
	}
	if args[1]["handle"] != handle {
		t.Errorf("released %v, want %s", args[1]["handle"], handle)
	}
}

func TestPage_AcquireThenClose(t *testing.T) {
	tab := &fakeTab{}
	page := newFakePage(tab)

	first, err := page.Acquire(context.Background(), "cable", domain.LoopbackConstraints())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	second, err := page.Acquire(context.Background(), "cable", domain.LoopbackConstraints())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	calls, args := tab.recorded()
	if len(calls) != 2 {
		t.Fatalf("successful acquisitions should not release, got %v", calls)
	}
	if args[0]["handle"] == args[1]["handle"] {
		t.Errorf("handles should be unique, both %v", args[0]["handle"])
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_ = second

	calls, args = tab.recorded()
	if len(calls) != 3 || calls[2] != "release_stream" {
		t.Fatalf("calls: got %v", calls)
	}
	if args[2]["handle"] != args[0]["handle"] {
		t.Errorf("released %v, want %v", args[2]["handle"], args[0]["handle"])
	}
}
