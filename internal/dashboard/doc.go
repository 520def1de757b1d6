// Package dashboard provides the typed operations and session state of the
// CEM dashboard on top of the message channel.
//
// Service wraps each backend request type (SKI registration, LPC/LPP
// queries, log level, mDNS discovery, simulation control) with Go types.
// Session tracks what the dashboard shows: connection status, the local
// SKI, discovered devices, the devices placed on the grid, and whether a
// simulation is running.
package dashboard
