// Package engine is the session engine the coordinator sits on: it owns the
// registration id, the identity keys, pre-key bundles and X3DH sessions.
//
// Engine composes the identity, prekey and session services and binds them to
// one local account and passphrase so callers never handle key material.
package engine
