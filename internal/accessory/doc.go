// Package accessory persists the host-visible accessories of the Nuki
// devices and the bridge.
//
// Every device gets a lock accessory. Depending on its settings a smart lock
// adds a door contact sensor and an opener adds ring-to-open and
// continuous-mode switches, unless single accessory mode folds them into
// the lock. With the reboot switch enabled the bridge gets a bridge_switch
// accessory.
//
// Accessory IDs are name-based UUIDs of Nuki ID, kind and subtype, so a
// device keeps its accessories across restarts. The Registry implements the
// bridge's Binder: it adds, renames and removes rows so the table matches
// the current device set.
package accessory
