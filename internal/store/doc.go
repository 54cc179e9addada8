// Package store provides persistence for the coordinator and its session
// engine.
//
// Engine state is serialised as JSON files under the configured home
// directory, written through a synced temp file and an atomic rename. The
// identity file is sealed with a passphrase-derived key (scrypt +
// ChaCha20-Poly1305). All methods are concurrency-safe via internal locking.
//
// The package includes stores for:
//   - Identity keys (IdentityFileStore)
//   - Account record and registration id (AccountFileStore)
//   - Pre-keys (PrekeyFileStore)
//   - This device's bundle (BundleFileStore)
//   - Sessions per remote device (SessionFileStore)
//   - Device lists per identity (DeviceSQLiteStore, SQLite)
package store
