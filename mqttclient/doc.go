// Package mqttclient provides MQTT broker connectivity for the ingestion
// pipeline. It manages connection to the broker with auto-reconnect, QoS 1
// subscriptions with wildcard support, publishing, and connection status
// reporting.
package mqttclient
