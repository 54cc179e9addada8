// Package devicelist keeps the local view of device lists in step with the
// discovery service.
//
// Remote lists replace what is stored. Our own list is checked for our
// registration id; when it is missing the list is healed and republished.
package devicelist
