// Package natsclient manages the NATS connection used for session update
// fan-out. It wraps connection lifecycle, reconnection, and a circuit
// breaker so publishers never block ingestion when the bus is degraded.
package natsclient
