// Package metric provides Prometheus metrics registration and the metrics
// HTTP server. A private registry keeps the scrape surface limited to what
// this process registers plus Go runtime collectors.
package metric
