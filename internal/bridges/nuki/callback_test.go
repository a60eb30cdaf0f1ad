package nuki

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

type recordingHandler struct {
	mu   sync.Mutex
	raws []device.RawStatus
	err  error
}

func (h *recordingHandler) HandleCallback(raw device.RawStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raws = append(h.raws, raw)
	return h.err
}

func TestCallbackServer_Handler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		handlerErr error
		wantStatus int
		wantCalls  int
	}{
		{"known device", http.MethodPost, `{"nukiId":7,"deviceType":0,"state":3,"batteryCritical":false}`, nil, http.StatusOK, 1},
		{"unknown device still ok", http.MethodPost, `{"nukiId":8,"state":1}`, device.ErrDeviceNotFound, http.StatusOK, 1},
		{"missing id", http.MethodPost, `{"state":1}`, nil, http.StatusBadRequest, 0},
		{"zero id", http.MethodPost, `{"nukiId":0,"state":1}`, nil, http.StatusBadRequest, 0},
		{"not json", http.MethodPost, `nukiId=7`, nil, http.StatusBadRequest, 0},
		{"empty body", http.MethodPost, ``, nil, http.StatusBadRequest, 0},
		{"wrong method", http.MethodGet, ``, nil, http.StatusMethodNotAllowed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{err: tt.handlerErr}
			srv := NewCallbackServer("127.0.0.1:0", h, nil, nil)

			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(h.raws) != tt.wantCalls {
				t.Errorf("handler called %d times, want %d", len(h.raws), tt.wantCalls)
			}
		})
	}
}

func TestCallbackServer_StartClose(t *testing.T) {
	h := &recordingHandler{}
	srv := NewCallbackServer("127.0.0.1:0", h, nil, nil)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	addr := srv.Addr()
	if strings.HasSuffix(addr, ":0") {
		t.Fatalf("Addr() = %q, want bound port", addr)
	}

	resp, err := http.Post("http://"+addr+"/", "application/json", strings.NewReader(`{"nukiId":1,"state":1}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if len(h.raws) != 1 || h.raws[0].NukiID != 1 {
		t.Errorf("handled = %+v", h.raws)
	}

	if err := srv.Close(t.Context()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := srv.Close(t.Context()); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := http.Post("http://"+addr+"/", "application/json", strings.NewReader(`{}`)); err == nil {
		t.Error("POST after Close succeeded")
	}
}

func TestNormalizeCallback(t *testing.T) {
	raw, err := NormalizeCallback([]byte(`{
		"nukiId": 11, "deviceType": 2, "mode": 3, "state": 1, "stateName": "online",
		"batteryCritical": true, "batteryCharging": false, "batteryChargeState": 64,
		"doorsensorState": 3, "ringactionState": true, "ringactionTimestamp": "2024-01-01T00:00:00+00:00"
	}`))
	if err != nil {
		t.Fatalf("NormalizeCallback() error = %v", err)
	}
	if raw.NukiID != 11 || raw.State != 1 || !raw.BatteryCritical {
		t.Errorf("raw = %+v", raw)
	}
	if raw.Mode == nil || *raw.Mode != 3 {
		t.Errorf("Mode = %v, want 3", raw.Mode)
	}
	if raw.BatteryChargeState == nil || *raw.BatteryChargeState != 64 {
		t.Errorf("BatteryChargeState = %v, want 64", raw.BatteryChargeState)
	}
	if raw.DoorSensorState == nil || *raw.DoorSensorState != 3 {
		t.Errorf("DoorSensorState = %v, want 3", raw.DoorSensorState)
	}
	if raw.RingActionState == nil || !*raw.RingActionState {
		t.Errorf("RingActionState = %v, want true", raw.RingActionState)
	}

	if _, err := NormalizeCallback([]byte(`{"state":1}`)); !errors.Is(err, ErrMissingDeviceID) {
		t.Errorf("missing id: error = %v, want ErrMissingDeviceID", err)
	}
	if _, err := NormalizeCallback([]byte(`{"nukiId":0,"state":1}`)); !errors.Is(err, ErrMissingDeviceID) {
		t.Errorf("zero id: error = %v, want ErrMissingDeviceID", err)
	}
	if _, err := NormalizeCallback([]byte(`[`)); !errors.Is(err, ErrInvalidBody) {
		t.Errorf("bad json: error = %v, want ErrInvalidBody", err)
	}
}

func TestNormalizeListing(t *testing.T) {
	listed, err := NormalizeListing([]byte(twoDeviceListing))
	if err != nil {
		t.Fatalf("NormalizeListing() error = %v", err)
	}
	if len(listed) != 4 {
		t.Fatalf("got %d entries, want 4", len(listed))
	}

	if kind, ok := listed[1].Kind(); !ok || kind != device.KindOpener {
		t.Errorf("entry 1 kind = %q, %v, want opener", kind, ok)
	}
	if _, ok := listed[2].Kind(); ok {
		t.Error("deviceType 4 reported as supported")
	}

	raw, ok := listed[0].Raw()
	if !ok || raw.NukiID != 1 || raw.State != 1 {
		t.Errorf("Raw() = %+v, %v", raw, ok)
	}

	if _, ok := (ListedDevice{NukiID: 5}).Raw(); ok {
		t.Error("Raw() without lastKnownState reported ok")
	}

	if _, err := NormalizeListing([]byte(`{"not":"a list"}`)); err == nil {
		t.Error("NormalizeListing(object) error = nil")
	}
}
