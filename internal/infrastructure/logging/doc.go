// Package logging configures log/slog for the service.
//
// Every entry carries service and version fields. Components take a child
// logger from Component so their entries can be filtered:
//
//	log := logging.New(cfg.Logging, version)
//	store.SetLogger(log.Component("store"))
//
// The bridge and API tokens are never logged; bridge requests are logged
// by path and the token is added to the query at send time.
package logging
