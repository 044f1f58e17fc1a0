package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityForViewTable(t *testing.T) {
	cases := map[Resource]Capability{
		ResourceDashboard:     ViewDashboard,
		ResourceInbox:         ViewInbox,
		ResourceActions:       ViewActions,
		ResourceCancellations: ViewCancellations,
		ResourceEmails:        ViewEmails,
	}
	for res, want := range cases {
		got, ok := CapabilityFor(res, ActionView)
		require.True(t, ok, res)
		assert.Equal(t, want, got, res)
	}

	for _, res := range []Resource{ResourceSettings, ResourceUsers} {
		_, ok := CapabilityFor(res, ActionView)
		assert.False(t, ok, res)
	}
}

func TestCapabilityForEditTable(t *testing.T) {
	cases := map[Resource]Capability{
		ResourceInbox:   EditInbox,
		ResourceActions: EditActions,
		ResourceUsers:   ManageUsers,
	}
	for res, want := range cases {
		got, ok := CapabilityFor(res, ActionEdit)
		require.True(t, ok, res)
		assert.Equal(t, want, got, res)
	}

	for _, res := range []Resource{ResourceDashboard, ResourceCancellations, ResourceEmails, ResourceSettings} {
		_, ok := CapabilityFor(res, ActionEdit)
		assert.False(t, ok, res)
	}
}

func TestCapabilityForAdminActionUsesEditFlag(t *testing.T) {
	for _, res := range []Resource{ResourceInbox, ResourceActions, ResourceUsers} {
		edit, ok := CapabilityFor(res, ActionEdit)
		require.True(t, ok, res)
		admin, ok := CapabilityFor(res, ActionAdmin)
		require.True(t, ok, res)
		assert.Equal(t, edit, admin, res)
	}
	for _, res := range []Resource{ResourceDashboard, ResourceSettings} {
		_, ok := CapabilityFor(res, ActionAdmin)
		assert.False(t, ok, res)
	}
	_, ok := CapabilityFor(ResourceInbox, Action("delete"))
	assert.False(t, ok)
}

func TestAdminOnly(t *testing.T) {
	assert.True(t, AdminOnly(ResourceSettings))
	assert.True(t, AdminOnly(ResourceUsers))
	assert.False(t, AdminOnly(ResourceInbox))
	assert.False(t, AdminOnly(Resource("unknown")))
}

func TestParseHelpers(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)

	res, ok := ParseResource("INBOX")
	require.True(t, ok)
	assert.Equal(t, ResourceInbox, res)

	_, ok = ParseResource("billing")
	assert.False(t, ok)

	act, ok := ParseAction("edit")
	require.True(t, ok)
	assert.Equal(t, ActionEdit, act)

	c, ok := ParseCapability("manage_users")
	require.True(t, ok)
	assert.Equal(t, ManageUsers, c)
}
