package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon() Argon2Params {
	return Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestBcryptHashAndVerify(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("correct-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	ok, err := Verify("correct-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	cost, err := Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestBcryptRejectsOverlongInput(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash, err := h.Hash(strings.Repeat("a", 72))
	require.NoError(t, err)
	ok, err := Verify(strings.Repeat("a", 73), hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewBcryptCostBounds(t *testing.T) {
	_, err := NewBcrypt(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	h, err := NewBcrypt(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}

func TestArgon2HashAndVerify(t *testing.T) {
	h, err := NewArgon2(fastArgon())
	require.NoError(t, err)

	hash, err := h.Hash("correct-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := Verify("correct-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2AcceptsPaddedEncoding(t *testing.T) {
	h, err := NewArgon2(fastArgon())
	require.NoError(t, err)
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="
	ok, err := Verify("correct-password", strings.Join(parts, "$"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMalformedHashes(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2,x=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$c2hvcnQ$aGFzaA",
		"$2a$04$short",
	}
	for _, c := range cases {
		ok, err := Verify("whatever", c)
		assert.False(t, ok, c)
		assert.ErrorIs(t, err, ErrUnsupportedHash, c)
	}
}
