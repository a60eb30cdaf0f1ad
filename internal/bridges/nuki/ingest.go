package nuki

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// NormalizeListing decodes a /list response body.
func NormalizeListing(body []byte) ([]ListedDevice, error) {
	var listed []ListedDevice
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, fmt.Errorf("decoding device listing: %w", err)
	}
	return listed, nil
}

// Raw returns the entry's last known state as a RawStatus. The second
// return value is false when the bridge reported no state for the device.
func (d ListedDevice) Raw() (device.RawStatus, bool) {
	if d.LastKnownState == nil {
		return device.RawStatus{}, false
	}
	return d.LastKnownState.Raw(d.NukiID), true
}

// Kind returns the device kind, false for unsupported device types.
func (d ListedDevice) Kind() (device.Kind, bool) {
	return device.KindFromDeviceType(d.DeviceType)
}

// NormalizeCallback decodes a push notification body. It returns
// ErrMissingDeviceID when nukiId is absent or zero.
func NormalizeCallback(body []byte) (device.RawStatus, error) {
	var p StatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return device.RawStatus{}, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if p.NukiID == nil || *p.NukiID == 0 {
		return device.RawStatus{}, ErrMissingDeviceID
	}
	return p.Raw(*p.NukiID), nil
}
