package dashauth

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	internalaudit "github.com/c2tech/dashauth/internal/audit"
	"github.com/c2tech/dashauth/internal/rate"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/session"
)

// UserRecord is what a [UserStore] returns for an account.
type UserRecord struct {
	ID                 string
	Identifier         string
	DisplayName        string
	Role               string
	Active             bool
	PasswordHash       string
	ForcePasswordReset bool
}

// UserStore looks users up in the external account store. Both methods
// return (nil, nil) when no user matches.
type UserStore interface {
	FindUserByIdentifier(ctx context.Context, identifier string) (*UserRecord, error)
	FindUserByID(ctx context.Context, id string) (*UserRecord, error)
}

// PermissionStore returns every per-company grant for a user.
type PermissionStore interface {
	Permissions(ctx context.Context, userID string) ([]permission.Record, error)
}

// Session is the verified identity carried by a request.
type Session = session.Payload

// Claims is the identity handed to [Engine.IssueSession].
type Claims = session.Claims

// RateLimitResult is the outcome of a single rate-limit check.
type RateLimitResult = rate.Result

// LoginRequest is one submitted login attempt. Field limits mirror what
// the login form accepts.
type LoginRequest struct {
	Identifier string `json:"username" validate:"required,max=254"`
	Secret     string `json:"password" validate:"required,max=128"`
}

// LoginResult is returned for every successful login.
type LoginResult struct {
	Token              string
	Session            Session
	BreakGlass         bool
	ForcePasswordReset bool
}

// AuditEvent defines the structured audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events. Errors are logged by the engine and
// never reach the operation that produced the event.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc = internalaudit.SinkFunc

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events as structured log entries.
type LogSink = internalaudit.LogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(log logrus.FieldLogger) *LogSink {
	return internalaudit.NewLogSink(log)
}
