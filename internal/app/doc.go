// Package app wires application dependencies for the CLI.
//
// It loads Config from YAML, builds the concrete stores, engine, services and
// coordinator, and attaches the configured discovery transport, exposing them
// via the Wire struct for commands to use.
package app
