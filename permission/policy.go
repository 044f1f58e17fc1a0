package permission

import "strings"

// Resource is a protected area of the dashboard.
type Resource string

const (
	ResourceDashboard     Resource = "dashboard"
	ResourceInbox         Resource = "inbox"
	ResourceActions       Resource = "actions"
	ResourceCancellations Resource = "cancellations"
	ResourceEmails        Resource = "emails"
	ResourceSettings      Resource = "settings"
	ResourceUsers         Resource = "users"
)

// Action is the operation requested on a resource.
type Action string

const (
	ActionView  Action = "view"
	ActionEdit  Action = "edit"
	ActionAdmin Action = "admin"
)

var viewCapabilities = map[Resource]Capability{
	ResourceDashboard:     ViewDashboard,
	ResourceInbox:         ViewInbox,
	ResourceActions:       ViewActions,
	ResourceCancellations: ViewCancellations,
	ResourceEmails:        ViewEmails,
}

var editCapabilities = map[Resource]Capability{
	ResourceInbox:   EditInbox,
	ResourceActions: EditActions,
	ResourceUsers:   ManageUsers,
}

// adminOnly resources are never unlocked by a stored record.
var adminOnly = map[Resource]struct{}{
	ResourceSettings: {},
	ResourceUsers:    {},
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	switch r {
	case ResourceDashboard, ResourceInbox, ResourceActions, ResourceCancellations,
		ResourceEmails, ResourceSettings, ResourceUsers:
		return true
	default:
		return false
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionEdit, ActionAdmin:
		return true
	default:
		return false
	}
}

// ParseResource normalizes s into a known resource.
func ParseResource(s string) (Resource, bool) {
	r := Resource(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// ParseAction normalizes s into a known action.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	return a, a.Valid()
}

// AdminOnly reports whether only the admin role may touch r.
func AdminOnly(r Resource) bool {
	_, ok := adminOnly[r]
	return ok
}

// CapabilityFor returns the flag that grants action on resource. Every
// action other than view is checked against the edit flag. Unmapped pairs
// return false.
func CapabilityFor(resource Resource, action Action) (Capability, bool) {
	var table map[Resource]Capability
	switch action {
	case ActionView:
		table = viewCapabilities
	case ActionEdit, ActionAdmin:
		table = editCapabilities
	default:
		return 0, false
	}
	c, ok := table[resource]
	return c, ok
}
