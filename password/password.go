package password

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupportedHash is returned for stored hashes of an unknown format.
	ErrUnsupportedHash = errors.New("password: unsupported hash format")
	// ErrPasswordTooLong is returned when bcrypt would silently truncate the input.
	ErrPasswordTooLong = errors.New("password: exceeds 72 bytes")
	// ErrEmptyPassword is returned by hashers for empty input.
	ErrEmptyPassword = errors.New("password: empty")
)

// Hasher produces and checks stored credential hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Verify checks password against a stored hash of any supported format.
// A mismatch reports (false, nil); a malformed hash reports an error.
func Verify(password, encodedHash string) (bool, error) {
	switch {
	case isBcrypt(encodedHash):
		return verifyBcrypt(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return verifyArgon2(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
