// Package api provides the REST client for the CEM dashboard backend.
//
// Endpoints:
//   - GET /api/mdns/discovery: devices currently announced over mDNS
//   - GET /api/ski/local: the backend's own SKI
//
// Live traffic (LPC/LPP, SKI registration, simulation) goes over the
// message channel in package connection instead.
package api
