package nuki

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Bridge HTTP API paths.
const (
	pathList         = "/list"
	pathLockAction   = "/lockAction"
	pathCallbackList = "/callback/list"
	pathCallbackAdd  = "/callback/add"
	pathReboot       = "/reboot"
)

// ListPath returns the path of the device listing.
func ListPath() string {
	return pathList
}

// LockActionPath returns the path that performs action on one device.
func LockActionPath(nukiID int, kind device.Kind, action device.Action) string {
	return fmt.Sprintf("%s?nukiId=%d&deviceType=%d&action=%d", pathLockAction, nukiID, kind.DeviceType(), action)
}

// CallbackListPath returns the path listing registered push callbacks.
func CallbackListPath() string {
	return pathCallbackList
}

// CallbackAddPath returns the path registering callbackURL for push
// notifications. The URL is query-encoded.
func CallbackAddPath(callbackURL string) string {
	return pathCallbackAdd + "?url=" + url.QueryEscape(callbackURL)
}

// RebootPath returns the path that reboots the bridge.
func RebootPath() string {
	return pathReboot
}

// pathName strips the query so paths can be used as metric labels.
func pathName(path string) string {
	name, _, _ := strings.Cut(path, "?")
	return name
}
