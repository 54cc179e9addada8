// Package main runs the in-memory HTTP relay used during development and
// tests. It stores published device lists and bundles so that devices can
// discover each other without a pub-sub server.
//
// HTTP API
//
//	POST /devicelist/{jid}
//	    Replace the device list of {jid}. The body's publisher must belong to
//	    the same bare JID.
//
//	GET /devicelist/{jid}
//	    Return the device list of {jid}, or 404 if none was published.
//
//	POST /bundle
//	    Store a device's public bundle under its identity and device id.
//
//	GET /bundle/{jid}/{device}
//	    Return the bundle of one device, or 404.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON. Non-2xx statuses carry a short error message.
//   - Requests are rate limited per client address.
//   - With --debug an access log records method, path, remote, status, bytes
//     and duration for each request.
//   - The default listen address is :8080.
//
// The relay never sees private keys; it only stores public bundles.
package main
