package nocodb

import (
	"context"
	"strings"
	"time"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/permission"
)

var (
	_ dashauth.UserStore       = (*Client)(nil)
	_ dashauth.PermissionStore = (*Client)(nil)
	_ dashauth.AuditSink       = (*Client)(nil)
)

func (c *Client) userFromRow(row Row) *dashauth.UserRecord {
	return &dashauth.UserRecord{
		ID:                 row.String(idKeys...),
		Identifier:         row.String(emailKeys...),
		DisplayName:        row.String(nameKeys...),
		Role:               strings.ToLower(row.String(roleKeys...)),
		Active:             row.Bool(activeKeys...),
		PasswordHash:       row.String(hashKeys...),
		ForcePasswordReset: row.Bool(forceResetKeys...),
	}
}

func (c *Client) FindUserByIdentifier(ctx context.Context, identifier string) (*dashauth.UserRecord, error) {
	email := strings.ToLower(strings.TrimSpace(identifier))
	if !whereValue(email) {
		return nil, nil
	}

	rows, err := c.listRows(ctx, c.cfg.UsersTable, "(email,eq,"+email+")", 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return c.userFromRow(rows[0]), nil
}

func (c *Client) FindUserByID(ctx context.Context, id string) (*dashauth.UserRecord, error) {
	id = strings.TrimSpace(id)
	if !whereValue(id) {
		return nil, nil
	}

	rows, err := c.listRows(ctx, c.cfg.UsersTable, "(Id,eq,"+id+")", 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return c.userFromRow(rows[0]), nil
}

var capabilityColumns = []struct {
	capability permission.Capability
	keys       []string
}{
	{permission.ViewDashboard, []string{"can_view_dashboard"}},
	{permission.ViewInbox, []string{"can_view_inbox"}},
	{permission.ViewActions, []string{"can_view_actions", "can_view_acoes"}},
	{permission.ViewCancellations, []string{"can_view_cancellations", "can_view_cancelamentos"}},
	{permission.ViewEmails, []string{"can_view_emails"}},
	{permission.EditInbox, []string{"can_edit_inbox"}},
	{permission.EditActions, []string{"can_edit_actions", "can_edit_acoes"}},
	{permission.ManageUsers, []string{"can_manage_users"}},
}

func recordFromRow(userID string, row Row) permission.Record {
	var mask permission.Mask
	for _, col := range capabilityColumns {
		if row.Bool(col.keys...) {
			mask.Set(col.capability)
		}
	}
	return permission.Record{
		UserID:  userID,
		Company: row.String(companyKeys...),
		Mask:    mask,
	}
}

func (c *Client) Permissions(ctx context.Context, userID string) ([]permission.Record, error) {
	userID = strings.TrimSpace(userID)
	if !whereValue(userID) {
		return nil, nil
	}

	rows, err := c.listRows(ctx, c.cfg.AccessTable, "(user_id,eq,"+userID+")", 200)
	if err != nil {
		return nil, err
	}

	out := make([]permission.Record, 0, len(rows))
	for _, row := range rows {
		if uid := row.String(userIDKeys...); uid != "" && uid != userID {
			continue
		}
		out = append(out, recordFromRow(userID, row))
	}
	return out, nil
}

// Emit appends event to the audit table.
func (c *Client) Emit(ctx context.Context, event dashauth.AuditEvent) error {
	row := map[string]any{
		"audit_id":   event.ID,
		"action":     event.EventType,
		"user_id":    event.UserID,
		"user_email": event.Identifier,
		"resource":   event.Resource,
		"empresa":    event.Company,
		"ip":         event.IP,
		"user_agent": event.UserAgent,
		"success":    event.Success,
		"error":      event.Error,
		"created_at": event.Timestamp.UTC().Format(time.RFC3339),
	}
	return c.createRow(ctx, c.cfg.AuditTable, row)
}
