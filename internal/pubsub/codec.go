package pubsub

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"omemo/internal/domain"
)

// deviceListRecord is the stored form of a device-list node.
type deviceListRecord struct {
	Owner       string            `cbor:"1,keyasint"`
	Publisher   string            `cbor:"2,keyasint"`
	Devices     []domain.DeviceID `cbor:"3,keyasint"`
	PublishedAt int64             `cbor:"4,keyasint"`
}

// bundleRecord is the stored form of a bundle node.
type bundleRecord struct {
	Owner       string                  `cbor:"1,keyasint"`
	Bundle      domain.SessionKeyBundle `cbor:"2,keyasint"`
	PublishedAt int64                   `cbor:"3,keyasint"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(b []byte, v any) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("pubsub: decode record: %w", err)
	}
	return nil
}

// deviceListKey maps a bare JID to a key. JIDs contain characters KV keys
// do not allow, so they are base64url encoded.
func deviceListKey(bare string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(bare))
}

func bundleKey(bare string, id domain.DeviceID) string {
	return deviceListKey(bare) + "." + strconv.FormatUint(uint64(id), 10)
}

// ownerFromKey reverses deviceListKey.
func ownerFromKey(key string) (string, error) {
	head, _, _ := strings.Cut(key, ".")
	b, err := base64.RawURLEncoding.DecodeString(head)
	if err != nil {
		return "", fmt.Errorf("pubsub: bad key %q: %w", key, err)
	}
	return string(b), nil
}
