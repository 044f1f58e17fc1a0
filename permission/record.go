package permission

// Record is the stored grant for one (user, company) pair.
type Record struct {
	UserID  string `json:"user_id"`
	Company string `json:"company"`
	Mask    Mask   `json:"mask"`
}

// Allows reports whether the record carries capability c.
func (r Record) Allows(c Capability) bool {
	return r.Mask.Has(c)
}

// Flags is the column-per-capability shape used by row-oriented stores.
type Flags struct {
	ViewDashboard     bool `json:"can_view_dashboard"`
	ViewInbox         bool `json:"can_view_inbox"`
	ViewActions       bool `json:"can_view_actions"`
	ViewCancellations bool `json:"can_view_cancellations"`
	ViewEmails        bool `json:"can_view_emails"`
	EditInbox         bool `json:"can_edit_inbox"`
	EditActions       bool `json:"can_edit_actions"`
	ManageUsers       bool `json:"can_manage_users"`
}

// Mask converts the column flags into a capability mask.
func (f Flags) Mask() Mask {
	var m Mask
	set := func(on bool, c Capability) {
		if on {
			m.Set(c)
		}
	}
	set(f.ViewDashboard, ViewDashboard)
	set(f.ViewInbox, ViewInbox)
	set(f.ViewActions, ViewActions)
	set(f.ViewCancellations, ViewCancellations)
	set(f.ViewEmails, ViewEmails)
	set(f.EditInbox, EditInbox)
	set(f.EditActions, EditActions)
	set(f.ManageUsers, ManageUsers)
	return m
}

// FlagsFromMask is the inverse of [Flags.Mask].
func FlagsFromMask(m Mask) Flags {
	return Flags{
		ViewDashboard:     m.Has(ViewDashboard),
		ViewInbox:         m.Has(ViewInbox),
		ViewActions:       m.Has(ViewActions),
		ViewCancellations: m.Has(ViewCancellations),
		ViewEmails:        m.Has(ViewEmails),
		EditInbox:         m.Has(EditInbox),
		EditActions:       m.Has(EditActions),
		ManageUsers:       m.Has(ManageUsers),
	}
}

// Companies returns the distinct companies granted capability c, in
// first-seen order. A negative c matches any record.
func Companies(records []Record, c Capability) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Company == "" {
			continue
		}
		if c >= 0 && !r.Allows(c) {
			continue
		}
		if _, ok := seen[r.Company]; ok {
			continue
		}
		seen[r.Company] = struct{}{}
		out = append(out, r.Company)
	}
	return out
}

// AnyCapability is passed to [Companies] to match every record.
const AnyCapability Capability = -1
