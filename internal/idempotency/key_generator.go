package idempotency

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// GenerateKey hashes parts into a fixed-length key. Each part is length
// prefixed, so ("a:b", "c") and ("a", "b:c") yield different keys.
func GenerateKey(parts ...any) string {
	h := sha256.New()

	var size [8]byte
	for _, part := range parts {
		s := fmt.Sprint(part)
		binary.BigEndian.PutUint64(size[:], uint64(len(s)))
		h.Write(size[:])
		h.Write([]byte(s))
	}

	return hex.EncodeToString(h.Sum(nil))
}
