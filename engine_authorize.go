package dashauth

import (
	"context"
	"time"

	"github.com/c2tech/dashauth/internal/flows"
	"github.com/c2tech/dashauth/permission"
)

// Can reports whether s may perform action on resource. A non-empty
// company scopes the check to that company. Can fails closed: a nil
// session, an unmapped resource/action pair, and any store error deny.
func (e *Engine) Can(ctx context.Context, s *Session, resource permission.Resource, action permission.Action, company string) bool {
	if e == nil {
		return false
	}

	start := time.Now()
	allowed := flows.RunCan(ctx, s, resource, action, company, e.authzDeps)
	e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))

	if allowed {
		e.metricInc(MetricAuthorizeAllowed)
	} else {
		e.metricInc(MetricAuthorizeDenied)
	}
	return allowed
}

// Authorize is [Engine.Can] with error semantics: ErrUnauthorized for a
// missing session, ErrPermissionDenied for a denied one. Denials are
// audited.
func (e *Engine) Authorize(ctx context.Context, s *Session, resource permission.Resource, action permission.Action, company string) error {
	if s == nil {
		return ErrUnauthorized
	}
	if e.Can(ctx, s, resource, action, company) {
		return nil
	}

	e.emitAudit(ctx, auditRecord{
		eventType:  auditEventAccessDenied,
		userID:     s.Subject,
		identifier: s.Email,
		resource:   string(resource),
		company:    company,
		err:        ErrPermissionDenied,
		metadata:   map[string]string{"action": string(action)},
	})
	return ErrPermissionDenied
}

// AllowedCompanies returns the companies on which s may perform action on
// resource. Admins receive every configured company. Errors yield an
// empty, non-nil slice.
func (e *Engine) AllowedCompanies(ctx context.Context, s *Session, resource permission.Resource, action permission.Action) []string {
	if e == nil {
		return []string{}
	}
	return flows.RunAllowedCompanies(ctx, s, resource, action, e.authzDeps)
}

func (e *Engine) newAuthorizeDeps() flows.AuthorizeDeps {
	return flows.AuthorizeDeps{
		Permissions: e.fetchPermissions,
		Universe:    e.Companies,
		OnStoreError: func(ctx context.Context, userID string, err error) {
			e.metricInc(MetricAuthorizeStoreError)
			e.warn("permission lookup failed; denying", err, map[string]any{"user_id": userID})
		},
	}
}
