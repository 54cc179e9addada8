// Package publisher owns the lifecycle of this device's public bundle: it
// decides when a new bundle is needed, keeps the one-time pre-key supply
// topped up and remembers what reached the discovery service.
package publisher
