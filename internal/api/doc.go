// Package api implements the control-plane HTTP API and WebSocket hub of the
// Nuki bridge service.
//
// This package provides:
//   - REST endpoints to list devices, read one snapshot and set its targets
//   - Bridge maintenance endpoints (refresh, reboot)
//   - WebSocket hub broadcasting state changes and doorbell rings
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     Prometheus counters, OpenTelemetry spans)
//   - Static token authentication compared in constant time
//
// # Architecture
//
// The API sits beside the MQTT binding. Both read the device store and send
// commands through the bridge, so a command issued here is serialized with
// every other bridge request by the dispatcher.
//
//	HTTP client ──▶ Server ──▶ Controller (nuki.Bridge) ──▶ Dispatcher ──▶ bridge
//	                  ▲                     │
//	WebSocket ◀── Hub ◀── device.Store observer
//
// # Security
//
// Every route except /api/v1/health and /metrics requires the configured
// token in the Authorization header, either raw or as "Bearer <token>".
// Browsers may pass it as the token query parameter on /api/v1/ws.
package api
