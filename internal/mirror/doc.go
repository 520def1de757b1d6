// Package mirror republishes inbound dashboard messages to an MQTT broker so
// home-automation tooling can follow the backend without its own WebSocket
// connection.
//
// Each envelope is published as JSON to "<prefix>/<type>". Publishing happens
// on a worker goroutine behind a bounded queue; when the broker is slow or
// unreachable messages are dropped and counted rather than stalling dispatch.
package mirror
