// Package connection implements the dashboard's backend connection client.
//
// The Client:
//   - Owns at most one live WebSocket to the backend at a time
//   - Reconnects on a fixed interval after any unintended close
//   - Fans every inbound envelope out to all registered listeners
//   - Layers request/response calls on top of fire-and-forget sends,
//     matching responses by type (or by correlation id when enabled)
package connection
