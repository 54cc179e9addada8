// Package commands defines the omemo CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init             Create the local identity and registration id
//   - fingerprint      Print the identity fingerprint
//   - rotate-identity  Replace the identity keys and republish the bundle
//   - register         Publish the bundle and heal our own device list
//   - devices          Fetch and show a contact's devices and session state
//   - session          Start sessions with every reachable device of a contact
//   - listen           Stay connected, apply device-list events, serve metrics
//
// # Implementation
//
// The root command loads the YAML config, applies flag overrides and builds
// the dependency graph (stores, engine, services, coordinator) before any
// subcommand runs. Commands that talk to the discovery service call connect
// first.
package commands
