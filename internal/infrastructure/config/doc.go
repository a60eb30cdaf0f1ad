// Package config loads config.yaml for the Nuki bridge service.
//
// Values are layered: built-in defaults, then the YAML file, then the
// GRAYLOGIC_* environment variables listed in envOverrides. Tokens and
// passwords belong in the environment rather than the file.
//
// Devices lists per-device policy flags. A device the bridge reports
// without an entry here is not exposed.
//
//	cfg, err := config.Load("/etc/graylogic/nuki.yaml")
//	if err != nil {
//	    return err
//	}
//	dev, ok := cfg.Device(12345)
package config
