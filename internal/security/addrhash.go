package security

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// AddressHasher turns client network addresses into keyed, irreversible
// digests so raw addresses never reach the database.
type AddressHasher struct {
	key []byte
}

func NewAddressHasher(key []byte) (*AddressHasher, error) {
	if len(key) == 0 {
		return nil, errors.New("address hash key must not be empty")
	}
	// blake2b accepts keys of at most 64 bytes.
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &AddressHasher{key: key}, nil
}

// Hash returns the hex digest of addr, or nil when addr is blank.
func (h *AddressHasher) Hash(addr string) *string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Only reachable with an oversized key, which NewAddressHasher prevents.
		return nil
	}
	mac.Write([]byte(addr))
	digest := hex.EncodeToString(mac.Sum(nil))
	return &digest
}
