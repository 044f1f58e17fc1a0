// Package postgres reads users and per-company grants from PostgreSQL and
// writes audit events to it.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/permission"
)

// Tables names the three tables the store uses.
type Tables struct {
	Users  string `yaml:"users"`
	Access string `yaml:"access"`
	Audit  string `yaml:"audit"`
}

func DefaultTables() Tables {
	return Tables{
		Users:  "dashauth_users",
		Access: "dashauth_user_access",
		Audit:  "dashauth_audit_log",
	}
}

// Store implements the dashauth store interfaces over database/sql.
type Store struct {
	db *sql.DB

	users  string
	access string
	audit  string
}

var (
	_ dashauth.UserStore       = (*Store)(nil)
	_ dashauth.PermissionStore = (*Store)(nil)
	_ dashauth.AuditSink       = (*Store)(nil)
)

// New wraps db. Zero table names take their defaults.
func New(db *sql.DB, tables Tables) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	def := DefaultTables()
	if tables.Users == "" {
		tables.Users = def.Users
	}
	if tables.Access == "" {
		tables.Access = def.Access
	}
	if tables.Audit == "" {
		tables.Audit = def.Audit
	}

	return &Store{
		db:     db,
		users:  pq.QuoteIdentifier(tables.Users),
		access: pq.QuoteIdentifier(tables.Access),
		audit:  pq.QuoteIdentifier(tables.Audit),
	}, nil
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string, tables Tables) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(db, tables)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		password_hash TEXT NOT NULL,
		force_password_reset BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS %[4]s ON %[1]s (lower(email));

	CREATE TABLE IF NOT EXISTS %[2]s (
		user_id TEXT NOT NULL REFERENCES %[1]s (id) ON DELETE CASCADE,
		company TEXT NOT NULL,
		can_view_dashboard BOOLEAN NOT NULL DEFAULT FALSE,
		can_view_inbox BOOLEAN NOT NULL DEFAULT FALSE,
		can_view_actions BOOLEAN NOT NULL DEFAULT FALSE,
		can_view_cancellations BOOLEAN NOT NULL DEFAULT FALSE,
		can_view_emails BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_inbox BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_actions BOOLEAN NOT NULL DEFAULT FALSE,
		can_manage_users BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, company)
	);

	CREATE TABLE IF NOT EXISTS %[3]s (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		success BOOLEAN NOT NULL,
		user_id TEXT,
		identifier TEXT,
		resource VARCHAR(64),
		company TEXT,
		ip_address VARCHAR(45),
		user_agent TEXT,
		error_code VARCHAR(64),
		metadata JSONB
	);
	CREATE INDEX IF NOT EXISTS %[5]s ON %[3]s (timestamp DESC);
	`, s.users, s.access, s.audit,
		pq.QuoteIdentifier(unquote(s.users)+"_email_idx"),
		pq.QuoteIdentifier(unquote(s.audit)+"_timestamp_idx"),
	)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func unquote(ident string) string {
	return strings.ReplaceAll(strings.Trim(ident, `"`), `""`, `"`)
}

func (s *Store) userColumns() string {
	return "id, email, display_name, role, active, password_hash, force_password_reset"
}

func scanUser(row *sql.Row) (*dashauth.UserRecord, error) {
	var u dashauth.UserRecord
	err := row.Scan(&u.ID, &u.Identifier, &u.DisplayName, &u.Role, &u.Active, &u.PasswordHash, &u.ForcePasswordReset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = strings.ToLower(u.Role)
	return &u, nil
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*dashauth.UserRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(email) = lower($1)`, s.userColumns(), s.users)
	return scanUser(s.db.QueryRowContext(ctx, query, strings.TrimSpace(identifier)))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*dashauth.UserRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.userColumns(), s.users)
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) Permissions(ctx context.Context, userID string) ([]permission.Record, error) {
	query := fmt.Sprintf(`
		SELECT company,
			can_view_dashboard, can_view_inbox, can_view_actions,
			can_view_cancellations, can_view_emails,
			can_edit_inbox, can_edit_actions, can_manage_users
		FROM %s
		WHERE user_id = $1
		ORDER BY company`, s.access)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Record
	for rows.Next() {
		var (
			company string
			f       permission.Flags
		)
		if err := rows.Scan(&company,
			&f.ViewDashboard, &f.ViewInbox, &f.ViewActions,
			&f.ViewCancellations, &f.ViewEmails,
			&f.EditInbox, &f.EditActions, &f.ManageUsers,
		); err != nil {
			return nil, err
		}
		out = append(out, permission.Record{UserID: userID, Company: company, Mask: f.Mask()})
	}
	return out, rows.Err()
}

// CompaniesWithAccess returns every company referenced by any grant.
func (s *Store) CompaniesWithAccess(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT company FROM %s ORDER BY company`, s.access))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UsersByID loads several users in one round trip. Missing ids are absent
// from the result.
func (s *Store) UsersByID(ctx context.Context, ids []string) (map[string]*dashauth.UserRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, s.userColumns(), s.users)
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*dashauth.UserRecord, len(ids))
	for rows.Next() {
		var u dashauth.UserRecord
		if err := rows.Scan(&u.ID, &u.Identifier, &u.DisplayName, &u.Role, &u.Active, &u.PasswordHash, &u.ForcePasswordReset); err != nil {
			return nil, err
		}
		u.Role = strings.ToLower(u.Role)
		out[u.ID] = &u
	}
	return out, rows.Err()
}

// Emit inserts event into the audit table.
func (s *Store) Emit(ctx context.Context, event dashauth.AuditEvent) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, timestamp, event_type, success,
			user_id, identifier, resource, company,
			ip_address, user_agent, error_code, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, s.audit)

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.EventType, event.Success,
		nullString(event.UserID), nullString(event.Identifier), nullString(event.Resource), nullString(event.Company),
		nullString(event.IP), nullString(event.UserAgent), nullString(event.Error), metadata,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
