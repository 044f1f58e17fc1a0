package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const maxBcryptBytes = 72

// Bcrypt hashes with a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. cost 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password: bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxBcryptBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	if !isBcrypt(encodedHash) {
		return false, ErrUnsupportedHash
	}
	return verifyBcrypt(password, encodedHash)
}

// Cost reports the cost embedded in a stored bcrypt hash.
func Cost(encodedHash string) (int, error) {
	return bcrypt.Cost([]byte(encodedHash))
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	if len(password) > maxBcryptBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
}
