package types

import (
	"slices"
	"time"
)

// DeviceSet is an unordered set of device ids. Ordering only exists at the
// protocol boundary, see Sorted.
type DeviceSet map[DeviceID]struct{}

// NewDeviceSet returns a set holding ids.
func NewDeviceSet(ids ...DeviceID) DeviceSet {
	s := make(DeviceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// DeviceSetFromSlice converts a wire sequence into a set. Duplicates collapse.
func DeviceSetFromSlice(ids []DeviceID) DeviceSet { return NewDeviceSet(ids...) }

// Add inserts id.
func (s DeviceSet) Add(id DeviceID) { s[id] = struct{}{} }

// Contains reports whether id is in the set. A nil set contains nothing.
func (s DeviceSet) Contains(id DeviceID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids.
func (s DeviceSet) Len() int { return len(s) }

// Clone returns an independent copy.
func (s DeviceSet) Clone() DeviceSet {
	out := make(DeviceSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Union returns a new set holding the ids of s and other.
func (s DeviceSet) Union(other DeviceSet) DeviceSet {
	out := s.Clone()
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports set equality.
func (s DeviceSet) Equal(other DeviceSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in ascending order. Callers must not attach meaning
// to the order; it only makes wire output deterministic.
func (s DeviceSet) Sorted() []DeviceID {
	out := make([]DeviceID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// DeviceRecord is one observed device of an identity.
type DeviceRecord struct {
	Identity    string   `json:"identity"`
	DeviceID    DeviceID `json:"device_id"`
	IsOwnDevice bool     `json:"is_own_device"`
}

// DeviceListSnapshot is the current authoritative device list of one bare
// identity. A newer snapshot replaces it wholesale.
type DeviceListSnapshot struct {
	Identity   string
	Devices    DeviceSet
	ObservedAt time.Time
}

// Records expands the snapshot into per-device records.
func (s DeviceListSnapshot) Records(own bool) []DeviceRecord {
	out := make([]DeviceRecord, 0, len(s.Devices))
	for _, id := range s.Devices.Sorted() {
		out = append(out, DeviceRecord{Identity: s.Identity, DeviceID: id, IsOwnDevice: own})
	}
	return out
}
