package flows

import (
	"context"
	"slices"

	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/session"
)

// AuthorizeDeps captures authorization dependencies.
type AuthorizeDeps struct {
	// Permissions must honor ctx cancellation; the Engine wraps it with
	// the configured lookup timeout.
	Permissions func(ctx context.Context, userID string) ([]permission.Record, error)
	// Universe returns every known company. An empty universe disables
	// the known-company filter.
	Universe     func() []string
	OnStoreError func(ctx context.Context, userID string, err error)
}

// RunCan decides whether s may perform action on resource, optionally
// scoped to company. It fails closed on every unknown or error.
func RunCan(ctx context.Context, s *session.Payload, resource permission.Resource, action permission.Action, company string, deps AuthorizeDeps) bool {
	if s == nil {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	if permission.AdminOnly(resource) {
		return false
	}
	if company != "" && !s.HasCompany(company) {
		return false
	}

	capability, ok := permission.CapabilityFor(resource, action)
	if !ok || s.Subject == "" || deps.Permissions == nil {
		return false
	}

	records, err := deps.Permissions(ctx, s.Subject)
	if err != nil {
		if deps.OnStoreError != nil {
			deps.OnStoreError(ctx, s.Subject, err)
		}
		return false
	}

	for _, r := range records {
		if company != "" && r.Company != company {
			continue
		}
		if r.Allows(capability) {
			return true
		}
	}
	return false
}

// RunAllowedCompanies returns the companies on which s may perform action
// on resource. Admins receive the whole universe. Lookup errors yield an
// empty set.
func RunAllowedCompanies(ctx context.Context, s *session.Payload, resource permission.Resource, action permission.Action, deps AuthorizeDeps) []string {
	var universe []string
	if deps.Universe != nil {
		universe = deps.Universe()
	}

	if s == nil {
		return []string{}
	}
	if s.IsAdmin() {
		return append([]string{}, universe...)
	}
	if permission.AdminOnly(resource) {
		return []string{}
	}

	capability, ok := permission.CapabilityFor(resource, action)
	if !ok || s.Subject == "" || deps.Permissions == nil {
		return []string{}
	}

	records, err := deps.Permissions(ctx, s.Subject)
	if err != nil {
		if deps.OnStoreError != nil {
			deps.OnStoreError(ctx, s.Subject, err)
		}
		return []string{}
	}

	granted := permission.Companies(records, capability)
	if len(universe) == 0 {
		return granted
	}

	out := granted[:0]
	for _, c := range granted {
		if slices.Contains(universe, c) {
			out = append(out, c)
		}
	}
	return out
}
