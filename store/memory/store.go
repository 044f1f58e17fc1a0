// Package memory is an in-process user, permission and audit store for
// tests, demos and single-node deployments seeded from configuration.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/permission"
)

// Store keeps users, grants and audit events in memory. It is safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	users   map[string]dashauth.UserRecord
	byIdent map[string]string
	grants  map[string][]permission.Record
	events  []dashauth.AuditEvent
}

var (
	_ dashauth.UserStore       = (*Store)(nil)
	_ dashauth.PermissionStore = (*Store)(nil)
	_ dashauth.AuditSink       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:   make(map[string]dashauth.UserRecord),
		byIdent: make(map[string]string),
		grants:  make(map[string][]permission.Record),
	}
}

func identKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// PutUser inserts or replaces u. Identifiers match case-insensitively.
func (s *Store) PutUser(u dashauth.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.users[u.ID]; ok {
		delete(s.byIdent, identKey(old.Identifier))
	}
	s.users[u.ID] = u
	s.byIdent[identKey(u.Identifier)] = u.ID
}

// RemoveUser deletes the user and their grants.
func (s *Store) RemoveUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		delete(s.byIdent, identKey(u.Identifier))
	}
	delete(s.users, id)
	delete(s.grants, id)
}

// Grant adds caps on company to the user's existing grant for it.
func (s *Store) Grant(userID, company string, caps ...permission.Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.grants[userID]
	for i := range records {
		if records[i].Company == company {
			for _, c := range caps {
				records[i].Mask.Set(c)
			}
			return
		}
	}
	s.grants[userID] = append(records, permission.Record{
		UserID:  userID,
		Company: company,
		Mask:    permission.MaskOf(caps...),
	})
}

// SetPermissions replaces every grant of userID.
func (s *Store) SetPermissions(userID string, records []permission.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[userID] = slices.Clone(records)
}

func (s *Store) FindUserByIdentifier(_ context.Context, identifier string) (*dashauth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdent[identKey(identifier)]
	if !ok {
		return nil, nil
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (*dashauth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) Permissions(_ context.Context, userID string) ([]permission.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.grants[userID]), nil
}

// Emit records an audit event.
func (s *Store) Emit(_ context.Context, event dashauth.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// AuditEvents returns a copy of the recorded audit events.
func (s *Store) AuditEvents() []dashauth.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}
