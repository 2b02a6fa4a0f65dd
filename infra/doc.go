// Package infra holds the adapters that talk to the outside world: the
// Modbus device session, MQTT and webhook publishers, the metrics sinks,
// the SQLite result store, zerolog logging and Sentry monitoring. They
// implement interfaces declared under core.
package infra
