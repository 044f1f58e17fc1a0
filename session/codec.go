package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptySecret is returned by [NewCodec] when no signing secret is supplied.
	ErrEmptySecret = errors.New("session: empty signing secret")
	// ErrInvalidTTL is returned by [NewCodec] for a non-positive TTL.
	ErrInvalidTTL = errors.New("session: ttl must be > 0")
	// ErrInvalidClaims is returned by [Codec.Issue] for claims that could never verify.
	ErrInvalidClaims = errors.New("session: invalid claims")
)

var encoding = base64.RawURLEncoding

// Codec issues and verifies session tokens with a single HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a [Codec].
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec returns a codec signing with secret. The secret is copied.
func NewCodec(secret []byte, ttl time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the lifetime stamped on issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue stamps iat/exp onto claims and returns the signed token together
// with the payload it encodes.
func (c *Codec) Issue(claims Claims) (string, Payload, error) {
	if claims.Subject == "" || !claims.Role.Valid() {
		return "", Payload{}, ErrInvalidClaims
	}

	now := c.now()
	p := Payload{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		Companies: claims.Companies,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.ttl).Unix(),
	}
	if p.Companies == nil {
		p.Companies = []string{}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", Payload{}, err
	}

	encoded := encoding.EncodeToString(body)
	return encoded + "." + c.sign(encoded), p, nil
}

// Verify returns the payload of a well-formed, correctly signed, unexpired
// token. Every failure reports false with no further detail.
func (c *Codec) Verify(token string) (*Payload, bool) {
	if c == nil || token == "" {
		return nil, false
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}

	// Compare the encoded form so non-canonical base64 trailing bits
	// cannot alias a valid signature.
	expected := c.sign(parts[0])
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
		return nil, false
	}

	body, err := encoding.DecodeString(parts[0])
	if err != nil {
		return nil, false
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, false
	}

	if p.ExpiresAt < c.now().Unix() {
		return nil, false
	}
	if p.Subject == "" || !p.Role.Valid() {
		return nil, false
	}
	if p.Companies == nil {
		p.Companies = []string{}
	}

	return &p, true
}

func (c *Codec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	return encoding.EncodeToString(mac.Sum(nil))
}
