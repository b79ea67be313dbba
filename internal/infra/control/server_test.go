package control_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"meetmic/internal/domain"
	"meetmic/internal/infra/control"
)

type fakeRoutines struct {
	selectResult  domain.Result
	publishResult domain.Result
	camera        domain.CameraOutcome
	calls         []string
}

func (f *fakeRoutines) SetupVirtualMicrophone(_ context.Context) domain.Result {
	f.calls = append(f.calls, "select")
	return f.selectResult
}

func (f *fakeRoutines) PublishActiveMicrophone(_ context.Context) domain.Result {
	f.calls = append(f.calls, "publish")
	return f.publishResult
}

func (f *fakeRoutines) DisableCamera(_ context.Context) domain.CameraOutcome {
	f.calls = append(f.calls, "camera")
	return f.camera
}

type recordedRequest struct {
	route  string
	status int
}

type fakeRequestObserver struct {
	requests []recordedRequest
}

func (f *fakeRequestObserver) ObserveRequest(route string, status int) {
	f.requests = append(f.requests, recordedRequest{route: route, status: status})
}

func newTestServer(token string, rate int, routines control.Routines, observer control.RequestObserver) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return control.NewServer(":0", token, rate, routines, observer, logger).Handler()
}

type response struct {
	OK         bool     `json:"ok"`
	Result     string   `json:"result"`
	Label      string   `json:"label"`
	Kind       string   `json:"kind"`
	Candidates []string `json:"candidates"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return r
}

func TestServer_SelectAndPublish(t *testing.T) {
	routines := &fakeRoutines{
		selectResult:  domain.Success("CABLE Output (VB-Audio Virtual Cable)", ""),
		publishResult: domain.Success("CABLE Output (VB-Audio Virtual Cable)", "Audio track injected - CABLE Output (VB-Audio Virtual Cable)"),
	}
	observer := &fakeRequestObserver{}
	handler := newTestServer("", 30, routines, observer)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/microphone/select", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d, want %d", rec.Code, http.StatusOK)
	}
	got := decode(t, rec)
	if !got.OK || got.Result != "success: CABLE Output (VB-Audio Virtual Cable)" {
		t.Errorf("select response: got %+v", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/microphone/publish", nil))
	got = decode(t, rec)
	if got.Label != "CABLE Output (VB-Audio Virtual Cable)" {
		t.Errorf("publish label: got %q", got.Label)
	}

	if len(routines.calls) != 2 || routines.calls[0] != "select" || routines.calls[1] != "publish" {
		t.Errorf("calls: got %v", routines.calls)
	}
	if len(observer.requests) != 2 || observer.requests[0].route != "POST /microphone/select" {
		t.Errorf("observed requests: got %+v", observer.requests)
	}
}

func TestServer_FailureResult(t *testing.T) {
	failure := domain.Failure(domain.KindDeviceNotFound, "Virtual microphone not found. Available: Built-in Mic")
	failure.Candidates = []string{"Built-in Mic"}
	handler := newTestServer("", 30, &fakeRoutines{selectResult: failure}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/microphone/select", nil))

	got := decode(t, rec)
	if got.OK {
		t.Error("expected ok=false")
	}
	if got.Kind != string(domain.KindDeviceNotFound) {
		t.Errorf("kind: got %q", got.Kind)
	}
	if got.Result != "error: Virtual microphone not found. Available: Built-in Mic" {
		t.Errorf("result: got %q", got.Result)
	}
	if len(got.Candidates) != 1 || got.Candidates[0] != "Built-in Mic" {
		t.Errorf("candidates: got %v", got.Candidates)
	}
}

func TestServer_Camera(t *testing.T) {
	handler := newTestServer("", 30, &fakeRoutines{camera: domain.CameraAlreadyOff}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/camera/disable", nil))

	var got struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Result != "Camera already OFF" {
		t.Errorf("result: got %q", got.Result)
	}
}

func TestServer_AuthToken(t *testing.T) {
	authToken := "test-secret-token-123"

	tests := []struct {
		name       string
		token      string
		method     string
		wantStatus int
	}{
		{
			name:       "valid token in header",
			token:      authToken,
			method:     "header",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid token in query",
			token:      authToken,
			method:     "query",
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid token",
			token:      "wrong-token",
			method:     "header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing token",
			token:      "",
			method:     "header",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routines := &fakeRoutines{publishResult: domain.Failure(domain.KindNoStreamAvailable, "Virtual mic stream not found")}
			handler := newTestServer(authToken, 30, routines, nil)

			var req *http.Request
			if tt.method == "query" {
				req = httptest.NewRequest(http.MethodPost, "/microphone/publish?token="+tt.token, nil)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/microphone/publish", nil)
				if tt.token != "" {
					req.Header.Set("X-Auth-Token", tt.token)
				}
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && len(routines.calls) != 0 {
				t.Error("routine must not run for unauthorized requests")
			}
		})
	}
}

func TestServer_RateLimit(t *testing.T) {
	handler := newTestServer("", 2, &fakeRoutines{}, nil)

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/microphone/publish", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes: got %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/microphone/publish", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other client: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	handler := newTestServer("", 30, &fakeRoutines{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/microphone/select", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServer_HealthNotRunning(t *testing.T) {
	handler := newTestServer("", 30, &fakeRoutines{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
