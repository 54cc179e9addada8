package crypto

import (
	"crypto/rand"
	"encoding/binary"
)

// maxRegistrationID keeps ids in the positive int32 range other clients expect.
const maxRegistrationID = 1<<31 - 1

// GenerateRegistrationID returns a random id in [1, 2^31-1].
func GenerateRegistrationID() (uint32, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, err
		}
		id := binary.BigEndian.Uint32(b[:]) & maxRegistrationID
		if id != 0 {
			return id, nil
		}
	}
}
