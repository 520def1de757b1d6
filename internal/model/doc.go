// Package model defines shared data types used across the CEM dashboard client.
//
// All types mirror the JSON documents served by the dashboard backend.
//
// Conventions:
//   - SKI: the device's subject key identifier, used as its unique ID
//   - JSON field names are camelCase, as the backend emits them
//   - Timestamps: int64 milliseconds since Unix epoch
package model
