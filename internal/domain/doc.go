// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (wire/state), contracts (interfaces), sentinel errors
// and the OMEMO pub-sub namespaces only.
package domain
