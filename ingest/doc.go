// Package ingest runs the measurement ingestion coordinator: it subscribes
// to the device measurement topics, routes and parses each delivery, drives
// the session state machine, and emits fan-out notifications for
// state-changing arrivals. Deliveries are at-least-once (QoS 1); everything
// downstream is idempotent, so redelivery is harmless.
package ingest
