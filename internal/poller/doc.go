// Package poller implements the Device Poller component.
//
// The Device Poller:
//   - Fetches the mDNS discovery list immediately, then every interval (5s)
//   - Fetches the backend's local SKI until it succeeds once
//   - Hands results to a Handler (the dashboard session)
//   - Never overlaps cycles; a slow backend delays the next tick
package poller
