// Package influxdb writes bridge telemetry to InfluxDB v2.
//
// Two measurements are written through the library's batching write API:
// nuki_requests, one point per bridge HTTP attempt, and nuki_battery, the
// battery state of a device after each state change. Writes never block;
// failures arrive asynchronously at the SetOnError callback.
package influxdb
