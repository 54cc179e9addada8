// Package relay is the HTTP discovery relay: a client implementing
// domain.DiscoveryModule and the server handlers behind cmd/relay.
//
// The relay stores device lists and public bundles in memory. It offers no
// push, so clients learn of changes by fetching, typically right after
// authenticating.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. A 404 maps to domain.ErrNodeNotFound; other non-2xx statuses are
// returned as errors carrying the method, path and status text.
package relay
