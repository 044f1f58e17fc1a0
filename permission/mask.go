package permission

import (
	"math/bits"
	"strings"
)

// Capability is a single bit inside a [Mask].
type Capability int

// Bit positions are stable: stores may persist the raw mask.
const (
	ViewDashboard Capability = iota
	ViewInbox
	ViewActions
	ViewCancellations
	ViewEmails
	EditInbox
	EditActions
	ManageUsers

	capabilityCount
)

var capabilityNames = [capabilityCount]string{
	ViewDashboard:     "view_dashboard",
	ViewInbox:         "view_inbox",
	ViewActions:       "view_actions",
	ViewCancellations: "view_cancellations",
	ViewEmails:        "view_emails",
	EditInbox:         "edit_inbox",
	EditActions:       "edit_actions",
	ManageUsers:       "manage_users",
}

// Valid reports whether c names a known capability bit.
func (c Capability) Valid() bool {
	return c >= 0 && c < capabilityCount
}

func (c Capability) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return capabilityNames[c]
}

// ParseCapability resolves a capability by its snake_case name.
func ParseCapability(name string) (Capability, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range capabilityNames {
		if n == name {
			return Capability(i), true
		}
	}
	return 0, false
}

// AllCapabilities returns every known capability in bit order.
func AllCapabilities() []Capability {
	out := make([]Capability, 0, capabilityCount)
	for c := Capability(0); c < capabilityCount; c++ {
		out = append(out, c)
	}
	return out
}

// Mask is a set of capability flags for one company.
type Mask uint64

// MaskOf builds a mask with the given capabilities set.
func MaskOf(caps ...Capability) Mask {
	var m Mask
	for _, c := range caps {
		m.Set(c)
	}
	return m
}

func (m Mask) Has(c Capability) bool {
	if !c.Valid() {
		return false
	}
	return m&(1<<uint(c)) != 0
}

func (m *Mask) Set(c Capability) {
	if !c.Valid() {
		return
	}
	*m |= 1 << uint(c)
}

func (m *Mask) Clear(c Capability) {
	if !c.Valid() {
		return
	}
	*m &^= 1 << uint(c)
}

// Capabilities lists the set flags in bit order. Bits above the known
// range are ignored.
func (m Mask) Capabilities() []Capability {
	out := make([]Capability, 0, bits.OnesCount64(uint64(m)))
	for c := Capability(0); c < capabilityCount; c++ {
		if m.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (m Mask) Raw() uint64 {
	return uint64(m)
}
