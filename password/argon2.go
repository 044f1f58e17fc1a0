package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID       = "argon2id"
	minArgonMemoryKB  = 8 * 1024
	minArgonSaltBytes = 16
	minArgonKeyBytes  = 16
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Argon2Params) validate() error {
	switch {
	case p.Memory < minArgonMemoryKB:
		return errors.New("password: argon2 memory must be >= 8192 KB")
	case p.Time < 1:
		return errors.New("password: argon2 time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("password: argon2 parallelism must be >= 1")
	case p.SaltLength < minArgonSaltBytes:
		return errors.New("password: argon2 salt length must be >= 16")
	case p.KeyLength < minArgonKeyBytes:
		return errors.New("password: argon2 key length must be >= 16")
	}
	return nil
}

// Argon2 hashes with argon2id and encodes PHC strings.
type Argon2 struct {
	params Argon2Params
}

func NewArgon2(params Argon2Params) (*Argon2, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Argon2{params: params}, nil
}

func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	return verifyArgon2(password, encodedHash)
}

type phcHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func verifyArgon2(password, encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.Memory, h.params.Parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

// parsePHC accepts both padded and unpadded base64 for salt and key since
// PHC producers disagree on padding.
func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: malformed argon2id hash", ErrUnsupportedHash)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version", ErrUnsupportedHash)
	}

	var p Argon2Params
	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: argon2 parameters", ErrUnsupportedHash)
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < minArgonMemoryKB {
				return nil, fmt.Errorf("%w: argon2 memory", ErrUnsupportedHash)
			}
			p.Memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: argon2 time", ErrUnsupportedHash)
			}
			p.Time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: argon2 parallelism", ErrUnsupportedHash)
			}
			p.Parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: argon2 parameter %q", ErrUnsupportedHash, k)
		}
		seen++
	}
	if seen != 3 || p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return nil, fmt.Errorf("%w: argon2 parameters", ErrUnsupportedHash)
	}

	salt, err := decodeB64(parts[4])
	if err != nil || len(salt) < minArgonSaltBytes {
		return nil, fmt.Errorf("%w: argon2 salt", ErrUnsupportedHash)
	}
	key, err := decodeB64(parts[5])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: argon2 key", ErrUnsupportedHash)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return &phcHash{params: p, salt: salt, key: key}, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
