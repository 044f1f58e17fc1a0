// Package nocodb reads users and per-company grants from NocoDB tables and
// writes audit events back to it.
package nocodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned by [New] when a required setting is empty.
var ErrNotConfigured = errors.New("nocodb: base url, base id and token are required")

// Config selects the NocoDB instance and tables.
type Config struct {
	BaseURL string `yaml:"base_url"`
	BaseID  string `yaml:"base_id"`
	// Token is sent as xc-token. It is never logged.
	Token string `yaml:"token"`

	UsersTable  string `yaml:"users_table"`
	AccessTable string `yaml:"access_table"`
	AuditTable  string `yaml:"audit_table"`

	Timeout       time.Duration `yaml:"timeout"`
	TableCacheTTL time.Duration `yaml:"table_cache_ttl"`
}

func (c *Config) setDefaults() {
	if c.UsersTable == "" {
		c.UsersTable = "usuarios"
	}
	if c.AccessTable == "" {
		c.AccessTable = "user_access"
	}
	if c.AuditTable == "" {
		c.AuditTable = "audit_logs"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.TableCacheTTL <= 0 {
		c.TableCacheTTL = 10 * time.Minute
	}
}

// Client talks to the NocoDB v2 REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	tables *lru.LRU[string, string]
	log    logrus.FieldLogger
}

func New(cfg Config, httpClient *http.Client, log logrus.FieldLogger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.BaseID = strings.TrimSpace(cfg.BaseID)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.BaseURL == "" || cfg.BaseID == "" || cfg.Token == "" {
		return nil, ErrNotConfigured
	}
	cfg.setDefaults()

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tables: lru.NewLRU[string, string](256, nil, cfg.TableCacheTTL),
		log:    log.WithField("component", "nocodb"),
	}, nil
}

// statusError is returned for non-2xx responses.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("nocodb: HTTP %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("xc-token", c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nocodb: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &statusError{status: resp.StatusCode, body: string(snippet)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type metaTable struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	TableName string `json:"table_name"`
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tableID resolves a table name to its NocoDB id through the meta API.
// Unknown names, and meta lookup failures, fall back to the name itself.
func (c *Client) tableID(ctx context.Context, name string) string {
	key := normalizeName(name)
	if id, ok := c.tables.Get(key); ok {
		return id
	}

	var meta struct {
		List []metaTable `json:"list"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/meta/bases/"+url.PathEscape(c.cfg.BaseID)+"/tables", nil, nil, &meta); err != nil {
		c.log.WithError(err).WithField("table", name).Warn("table metadata lookup failed; using name")
		return name
	}

	for _, t := range meta.List {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			continue
		}
		for _, alias := range []string{t.ID, t.Title, t.TableName} {
			if alias != "" {
				c.tables.Add(normalizeName(alias), id)
			}
		}
	}

	if id, ok := c.tables.Get(key); ok {
		return id
	}
	return name
}

type listResponse struct {
	List []Row `json:"list"`
}

// listRows returns up to limit rows of table matching where.
func (c *Client) listRows(ctx context.Context, table, where string, limit int) ([]Row, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if where != "" {
		q.Set("where", where)
	}

	var out listResponse
	path := "/api/v2/tables/" + url.PathEscape(c.tableID(ctx, table)) + "/records"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

func (c *Client) createRow(ctx context.Context, table string, row map[string]any) error {
	path := "/api/v2/tables/" + url.PathEscape(c.tableID(ctx, table)) + "/records"
	return c.do(ctx, http.MethodPost, path, nil, row, nil)
}

// whereValue reports whether v can be embedded in a where clause. NocoDB
// has no escaping for its filter syntax.
func whereValue(v string) bool {
	return v != "" && !strings.ContainsAny(v, "(),~")
}
