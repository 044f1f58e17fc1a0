package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/middleware"
	"github.com/c2tech/dashauth/permission"
)

const maxLoginBodyBytes = 16 << 10

var timeNow = time.Now

// Options configures the router.
type Options struct {
	// TrustProxy honors X-Forwarded-For and X-Real-IP for the client IP.
	TrustProxy bool
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Log     logrus.FieldLogger
}

// Handlers serves the auth API.
type Handlers struct {
	engine *dashauth.Engine
	log    logrus.FieldLogger
}

func NewHandlers(engine *dashauth.Engine, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{engine: engine, log: log}
}

// NewRouter returns a router with every route and the shared middleware
// chain installed.
func NewRouter(engine *dashauth.Engine, opts Options) *mux.Router {
	h := NewHandlers(engine, opts.Log)

	router := mux.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.AccessLog(h.log),
		middleware.SecurityHeaders,
		middleware.ClientContext(opts.TrustProxy),
	)
	h.RegisterRoutes(router)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	return router
}

// RegisterRoutes registers the auth routes on router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := middleware.RequireAPISession(h.engine)

	router.HandleFunc("/api/auth/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.logout).Methods(http.MethodPost)
	router.Handle("/api/auth/me", api(http.HandlerFunc(h.me))).Methods(http.MethodGet)
	router.Handle("/api/auth/companies", api(http.HandlerFunc(h.companies))).Methods(http.MethodGet)

	router.Handle("/api/admin/users/{id}/access",
		middleware.RequireCapability(h.engine, permission.ResourceUsers, permission.ActionAdmin, nil)(http.HandlerFunc(h.userAccess)),
	).Methods(http.MethodGet)
}

type loginResponse struct {
	OK                 bool `json:"ok"`
	ForcePasswordReset bool `json:"forcePasswordReset"`
}

// login handles POST /api/auth/login with a JSON or form body.
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLogin(w, r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.Login(r.Context(), req)
	if err != nil {
		var rl *dashauth.RateLimitError
		switch {
		case errors.As(err, &rl):
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(timeNow())))
			middleware.WriteError(w, http.StatusTooManyRequests, "too many attempts")
		case errors.Is(err, dashauth.ErrInvalidCredentials):
			middleware.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			h.log.WithError(err).Error("login failed")
			middleware.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	http.SetCookie(w, h.engine.SessionCookie(r, res.Token))
	middleware.WriteJSON(w, http.StatusOK, loginResponse{OK: true, ForcePasswordReset: res.ForcePasswordReset})
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (dashauth.LoginRequest, bool) {
	var req dashauth.LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, false
		}
		req.Identifier = r.PostFormValue("username")
		req.Secret = r.PostFormValue("password")
		return req, true
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxLoginBodyBytes); err != nil {
			return req, false
		}
		req.Identifier = r.PostFormValue("username")
		req.Secret = r.PostFormValue("password")
		return req, true
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, false
		}
		return req, true
	}
}

// logout handles POST /api/auth/logout. It succeeds without a session.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.engine.Logout(r.Context(), h.engine.RequireAuth(r))
	http.SetCookie(w, h.engine.ClearSessionCookie(r))
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type meResponse struct {
	Subject    string          `json:"sub"`
	Email      string          `json:"email"`
	Name       string          `json:"name"`
	Role       permission.Role `json:"role"`
	Companies  []string        `json:"companies"`
	BreakGlass bool            `json:"breakGlass"`
	ExpiresAt  int64           `json:"exp"`
}

// me handles GET /api/auth/me. The account is re-read so disabled users
// lose access before their token expires.
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	s, _ := dashauth.SessionFromContext(r.Context())

	active, err := h.engine.ConfirmActive(r.Context(), s)
	if err != nil || !active {
		http.SetCookie(w, h.engine.ClearSessionCookie(r))
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, meResponse{
		Subject:    s.Subject,
		Email:      s.Email,
		Name:       s.Name,
		Role:       s.Role,
		Companies:  s.Companies,
		BreakGlass: s.IsBreakGlass(),
		ExpiresAt:  s.ExpiresAt,
	})
}

// companies handles GET /api/auth/companies?resource=&action=.
func (h *Handlers) companies(w http.ResponseWriter, r *http.Request) {
	s, _ := dashauth.SessionFromContext(r.Context())

	q := r.URL.Query()
	resource, okR := permission.ParseResource(q.Get("resource"))
	action, okA := permission.ParseAction(q.Get("action"))
	if q.Get("action") == "" {
		action, okA = permission.ActionView, true
	}
	if !okR || !okA {
		middleware.WriteError(w, http.StatusBadRequest, dashauth.ErrInvalidResource.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string][]string{
		"companies": h.engine.AllowedCompanies(r.Context(), s, resource, action),
	})
}

type accessUser struct {
	ID                 string `json:"id"`
	Identifier         string `json:"identifier"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	Active             bool   `json:"active"`
	ForcePasswordReset bool   `json:"forcePasswordReset"`
}

type accessGrant struct {
	Company      string           `json:"company"`
	Capabilities []string         `json:"capabilities"`
	Flags        permission.Flags `json:"flags"`
}

type accessResponse struct {
	User        accessUser    `json:"user"`
	Permissions []accessGrant `json:"permissions"`
}

// userAccess handles GET /api/admin/users/{id}/access.
func (h *Handlers) userAccess(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	user, records, err := h.engine.UserAccess(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("user_id", id).Error("user access lookup failed")
		middleware.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		middleware.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	resp := accessResponse{
		User: accessUser{
			ID:                 user.ID,
			Identifier:         user.Identifier,
			Name:               user.DisplayName,
			Role:               user.Role,
			Active:             user.Active,
			ForcePasswordReset: user.ForcePasswordReset,
		},
		Permissions: make([]accessGrant, 0, len(records)),
	}
	for _, rec := range records {
		caps := rec.Mask.Capabilities()
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			names = append(names, c.String())
		}
		resp.Permissions = append(resp.Permissions, accessGrant{
			Company:      rec.Company,
			Capabilities: names,
			Flags:        permission.FlagsFromMask(rec.Mask),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
