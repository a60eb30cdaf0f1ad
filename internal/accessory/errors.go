package accessory

import "errors"

// ErrAccessoryNotFound is returned when an accessory does not exist.
var ErrAccessoryNotFound = errors.New("accessory not found")
