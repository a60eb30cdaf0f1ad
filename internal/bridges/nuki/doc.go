// Package nuki integrates a Nuki bridge with Gray Logic.
//
// It talks to the bridge's local HTTP API, keeps the device store in step
// with the bridge, receives push notifications and exposes devices over
// MQTT.
//
// # Architecture
//
//	┌────────────┐  commands   ┌──────────┐  Plan   ┌──────────────┐
//	│ MQTT / API │────────────▶│  Bridge  │────────▶│ device.Store │
//	└────────────┘             └────┬─────┘         └──────▲───────┘
//	                                │ Submit(path)         │ Reconcile
//	                                ▼                      │
//	                        ┌───────────────┐      ┌───────┴────────┐
//	                        │  Dispatcher   │      │ CallbackServer │
//	                        │ FIFO, 1 in    │      │  POST / (push) │
//	                        │ flight, gap,  │      └───────▲────────┘
//	                        │ bounded retry │              │
//	                        └───────┬───────┘              │
//	                                │ GET ?token=          │
//	                                ▼                      │
//	                        ┌──────────────────────────────┴┐
//	                        │          Nuki bridge          │
//	                        └───────────────────────────────┘
//
// # Key Types
//
//   - Dispatcher: the only path to the bridge; serializes and throttles calls
//   - Bridge: listing, teardown, commands, callback registration, reboot
//   - CallbackServer: HTTP endpoint the bridge pushes status to
//   - MQTTBinding: state/event publishing, command and request handling
//   - HealthReporter: retained health status on graylogic/health/nuki
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Dispatcher completion
// callbacks run on its worker goroutine in submission order.
//
// # Usage
//
//	d := nuki.NewDispatcher(nuki.DispatcherOptions{Endpoint: nuki.EndpointFromConfig(cfg.Bridge)})
//	defer d.Stop()
//
//	b, err := nuki.NewBridge(nuki.BridgeOptions{
//	    Dispatcher: d,
//	    Store:      device.NewStore(),
//	    Devices:    nuki.SettingsFromConfig(cfg.Devices),
//	})
//	b.Start(ctx)
//	defer b.Stop()
package nuki
