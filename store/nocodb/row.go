package nocodb

import (
	"fmt"
	"strconv"
	"strings"
)

// Row is one NocoDB record. Column spellings vary between bases, so
// fields are read through ordered alias lists.
type Row map[string]any

var (
	idKeys         = []string{"Id", "id", "ID"}
	emailKeys      = []string{"email", "Email"}
	nameKeys       = []string{"nome", "name", "display_name"}
	roleKeys       = []string{"role", "Role"}
	activeKeys     = []string{"status", "active", "ativo"}
	hashKeys       = []string{"password_hash", "passwordHash"}
	forceResetKeys = []string{"force_password_reset"}
	userIDKeys     = []string{"user_id", "userId"}
	companyKeys    = []string{"empresa", "company"}
)

// String returns the first non-blank value among keys.
func (r Row) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Bool returns the first present boolean-ish value among keys.
func (r Row) Bool(keys ...string) bool {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case float64:
			return t != 0
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err == nil {
				return b
			}
			return t == "1"
		}
	}
	return false
}
