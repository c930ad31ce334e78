// Package spectrad ingests spectral measurement sessions from field devices.
//
// # Pipeline
//
// Devices publish readings over MQTT on device/{device_id}/measurements.
// The daemon classifies topics, decodes reading payloads, and drives a
// session state machine backed by SQLite: the first confirmed reading, new
// or duplicate, completes the session. State-changing arrivals fan out as
// session update events over NATS, and a websocket gateway streams those
// events to browser viewers along with a snapshot on connect.
//
// The flow is:
//
//	MQTT broker -> ingest.Coordinator -> session.Engine -> store.Store
//	                                  \-> notify.Publisher -> NATS -> gateway/ws
//
// Operators start a measurement with the control publisher, which provisions
// the session row before commanding the device, so the first reading always
// finds its session.
//
// # Layout
//
//   - cmd/spectrad: daemon entry point and one-shot start-device mode
//   - codec: wire formats for readings, commands, and update events
//   - topic: MQTT topic classification and construction
//   - session: session state machine and arrival outcomes
//   - store: SQLite persistence for sessions, readings, and devices
//   - ingest: MQTT intake coordinator
//   - control: start_measurement command publisher
//   - notify: session update fan-out over NATS
//   - gateway/ws: websocket viewer gateway
//   - mqttclient, natsclient: transport clients with lifecycle management
//   - metric: Prometheus registry and scrape endpoint
//   - errors: classified error taxonomy shared across components
package spectrad
