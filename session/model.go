package session

import (
	"slices"
	"time"

	"github.com/c2tech/dashauth/permission"
)

// BreakGlassSubject is the subject placed in break-glass sessions.
const BreakGlassSubject = "break-glass"

// Claims is the identity handed to [Codec.Issue]. Timestamps are stamped
// by the codec.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Role      permission.Role
	Companies []string
}

// Payload is the verified content of a session token.
type Payload struct {
	Subject   string          `json:"sub"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Role      permission.Role `json:"role"`
	Companies []string        `json:"companies"`
	IssuedAt  int64           `json:"iat"`
	ExpiresAt int64           `json:"exp"`
}

// Claims strips the timestamps from p.
func (p *Payload) Claims() Claims {
	return Claims{
		Subject:   p.Subject,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		Companies: slices.Clone(p.Companies),
	}
}

// IsAdmin reports whether the session bypasses permission checks.
func (p *Payload) IsAdmin() bool {
	return p != nil && p.Role.IsAdmin()
}

// IsBreakGlass reports whether the session came from the break-glass path.
func (p *Payload) IsBreakGlass() bool {
	return p != nil && p.Subject == BreakGlassSubject
}

// HasCompany reports whether company is in the embedded company set.
func (p *Payload) HasCompany(company string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Companies, company)
}

func (p *Payload) ExpiresAtTime() time.Time {
	return time.Unix(p.ExpiresAt, 0)
}

func (p *Payload) IssuedAtTime() time.Time {
	return time.Unix(p.IssuedAt, 0)
}
