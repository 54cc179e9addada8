// Package pubsub is a discovery module backed by NATS JetStream key-value
// buckets: one bucket holds device lists, the other device bundles.
//
// Values are CBOR records. Watching the device-list bucket stands in for the
// +notify auto-subscription: every put is delivered as a pub-sub event.
package pubsub
