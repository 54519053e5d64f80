// Package password derives and verifies credential hashes.
//
// New hashes use argon2id encoded as
//
//	$argon2id$v=19$m=<memory KiB>,t=<iterations>,p=<threads>$<salt>$<key>
//
// with unpadded standard base64. When legacy support is enabled, bare
// lowercase-hex SHA-256 digests (unsalted) are also accepted and reported as
// needing a rehash.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/Proton-105/scoreboard/pkg/config"
)

var (
	ErrInvalidHash         = errors.New("password: invalid hash encoding")
	ErrIncompatibleVersion = errors.New("password: incompatible argon2 version")
	ErrLegacyDisabled      = errors.New("password: legacy sha256 hashes are disabled")
)

// Params are the argon2id cost parameters.
type Params struct {
	Time       uint32
	MemoryKiB  uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

// Hasher hashes and verifies passwords.
type Hasher struct {
	params       Params
	legacySHA256 bool
}

// NewHasher builds a Hasher from configuration.
func NewHasher(cfg config.PasswordConfig) *Hasher {
	return &Hasher{
		params: Params{
			Time:       cfg.Time,
			MemoryKiB:  cfg.MemoryKiB,
			Threads:    cfg.Threads,
			KeyLength:  cfg.KeyLength,
			SaltLength: cfg.SaltLength,
		},
		legacySHA256: cfg.LegacySHA256,
	}
}

// Hash derives a new salted argon2id hash for password.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. needsRehash is true when the
// stored hash is a legacy digest or uses weaker parameters than the current ones.
func (h *Hasher) Verify(password, encoded string) (ok bool, needsRehash bool, err error) {
	if isLegacySHA256(encoded) {
		if !h.legacySHA256 {
			return false, false, ErrLegacyDisabled
		}

		return subtle.ConstantTimeCompare([]byte(LegacySHA256(password)), []byte(strings.ToLower(encoded))) == 1, true, nil
	}

	params, salt, key, err := decode(encoded)
	if err != nil {
		return false, false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return false, false, nil
	}

	weaker := params.Time < h.params.Time ||
		params.MemoryKiB < h.params.MemoryKiB ||
		uint32(len(key)) < h.params.KeyLength

	return true, weaker, nil
}

// LegacySHA256 returns the unsalted hex SHA-256 digest stored by earlier deployments.
func LegacySHA256(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func isLegacySHA256(encoded string) bool {
	if len(encoded) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(encoded)
	return err == nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return Params{}, nil, nil, ErrIncompatibleVersion
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
