package nuki

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/config"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		want    device.Command
		wantErr error
	}{
		{CommandLock, nil, device.TargetLock(device.LockSecured), nil},
		{CommandUnlock, nil, device.TargetLock(device.LockUnsecured), nil},
		{CommandOpen, nil, device.TargetLock(device.LockUnsecured), nil},
		{CommandUnlatch, nil, device.TargetLatch(device.LockUnsecured), nil},
		{CommandSetTarget, map[string]any{"target": "secured"}, device.TargetLock(device.LockSecured), nil},
		{CommandSetTarget, map[string]any{"target": "jammed"}, device.Command{}, device.ErrInvalidTarget},
		{CommandSetTarget, nil, device.Command{}, ErrInvalidCommand},
		{CommandRingToOpen, map[string]any{"on": true}, device.SetRingToOpen(true), nil},
		{CommandContinuousMode, map[string]any{"on": false}, device.SetContinuousMode(false), nil},
		{CommandContinuousMode, map[string]any{"on": "yes"}, device.Command{}, ErrInvalidCommand},
		{"reboot", nil, device.Command{}, ErrInvalidCommand},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.name, tt.params)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ParseCommand(%q, %v) error = %v, want %v", tt.name, tt.params, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q, %v) = %+v, want %+v", tt.name, tt.params, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ListPath(), "/list"},
		{LockActionPath(5, device.KindOpener, device.ActionOpen), "/lockAction?nukiId=5&deviceType=2&action=3"},
		{LockActionPath(9, device.KindSmartLock, device.ActionLock), "/lockAction?nukiId=9&deviceType=0&action=2"},
		{CallbackListPath(), "/callback/list"},
		{CallbackAddPath("http://10.0.0.2:40506"), "/callback/add?url=http%3A%2F%2F10.0.0.2%3A40506"},
		{RebootPath(), "/reboot"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StateTopic(42), "graylogic/state/nuki/42"},
		{CommandTopic(42), "graylogic/command/nuki/42"},
		{AckTopic(42), "graylogic/ack/nuki/42"},
		{EventTopic(42), "graylogic/event/nuki/42"},
		{HealthTopic(), "graylogic/health/nuki"},
		{ResponseTopic("r1"), "graylogic/response/nuki/r1"},
		{CommandSubscribeTopic(), "graylogic/command/nuki/+"},
		{RequestSubscribeTopic(), "graylogic/request/nuki/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSettingsFromConfig(t *testing.T) {
	got := SettingsFromConfig([]config.DeviceConfig{
		{NukiID: 1, UnlatchLock: true, UnlatchLockPreventUnlatchIfLocked: true, LatchName: "Latch"},
		{NukiID: 2, LeaveOpen: true, DoorbellEnabled: true, SingleAccessoryMode: true},
	})

	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if s := got[1]; !s.LatchEnabled || !s.PreventUnlatchIfLocked || s.LatchName != "Latch" {
		t.Errorf("lock settings = %+v", s)
	}
	if s := got[2]; !s.LeaveOpen || !s.DoorbellEnabled || !s.SingleAccessoryMode || s.LatchEnabled {
		t.Errorf("opener settings = %+v", s)
	}
}

func TestEndpointFromConfig(t *testing.T) {
	ep := EndpointFromConfig(config.BridgeConfig{Host: "h", Port: 8080, Token: "t", RetryCount: 3})
	if ep.Host != "h" || ep.Port != 8080 || ep.Token != "t" || ep.MaxAttempts != 3 {
		t.Errorf("EndpointFromConfig() = %+v", ep)
	}
}
