// Package audit keeps a persistent history of device commands.
//
// Every command outcome produced by the Nuki bridge (from the control API or
// the MQTT command topics) is written to the command_log table by a
// Recorder. The history can be listed per device, newest first.
package audit
