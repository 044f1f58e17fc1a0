package dashauth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/c2tech/dashauth/internal/flows"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventLoginBreakGlass  = "login_success_break_glass"
	auditEventLogout           = "logout"
	auditEventAccessDenied     = "access_denied"
)

// AuditErrorCode is the stable classification written to audit records.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrSessionIssue       AuditErrorCode = "session_issue_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
)

type auditRecord struct {
	eventType  string
	success    bool
	userID     string
	identifier string
	resource   string
	company    string
	err        error
	metadata   map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}
	e.emitAuditEvent(ctx, AuditEvent{
		EventType:  rec.eventType,
		Success:    rec.success,
		UserID:     rec.userID,
		Identifier: rec.identifier,
		IP:         ClientIPFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
		Resource:   rec.resource,
		Company:    rec.company,
		Error:      string(auditErrorCode(rec.err)),
		Metadata:   rec.metadata,
	})
}

func (e *Engine) emitLoginAudit(ctx context.Context, a flows.LoginAudit) {
	if e == nil || e.audit == nil {
		return
	}
	e.emitAuditEvent(ctx, AuditEvent{
		EventType:  a.EventType,
		Success:    a.Success,
		UserID:     a.UserID,
		Identifier: a.Identifier,
		IP:         a.IP,
		UserAgent:  a.UserAgent,
		Resource:   "auth",
		Error:      string(auditErrorCode(a.Err)),
		Metadata:   a.Metadata,
	})
}

func (e *Engine) emitAuditEvent(ctx context.Context, event AuditEvent) {
	event.ID = uuid.NewString()
	event.Timestamp = e.now().UTC()
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrSessionIssueFailed):
		return auditErrSessionIssue
	default:
		return auditErrInternal
	}
}
