package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"gridadmin/internal/core"
	"gridadmin/internal/storage"
	"gridadmin/internal/transports/common"
)

// Source — имя источника команд HTTP-транспорта для authz и аудита.
const Source = "web"

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxIdentity  contextKey = "identity"
)

// TokenEntry описывает web bearer-токен.
type TokenEntry struct {
	ID          string
	TokenSHA256 string
	Subject     string
	Roles       []string
	Enabled     bool
}

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr               string
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	ShutdownTimeout          time.Duration
	RequestTimeout           time.Duration
	MaxRequestBody           int64
	AllowLegacySubjectHeader bool
	Tokens                   []TokenEntry
	CORSAllowedOrigins       []string
	CORSAllowedMethods       []string
	CORSAllowedHeaders       []string
}

func (c Config) withDefaults() Config {
	setDuration := func(d *time.Duration, def time.Duration) {
		if *d <= 0 {
			*d = def
		}
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8080"
	}
	setDuration(&c.ReadTimeout, 2*time.Second)
	setDuration(&c.WriteTimeout, 10*time.Second)
	setDuration(&c.ShutdownTimeout, 5*time.Second)
	setDuration(&c.RequestTimeout, 5*time.Second)
	if c.MaxRequestBody <= 0 {
		c.MaxRequestBody = 1 << 20
	}
	if len(c.CORSAllowedMethods) == 0 {
		c.CORSAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(c.CORSAllowedHeaders) == 0 {
		c.CORSAllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	return c
}

// Adapter — HTTP-транспорт административных команд кластера.
type Adapter struct {
	service *common.Service
	store   storage.Store
	logger  *slog.Logger
	cfg     Config
	auth    authenticator
	cors    corsPolicy

	mu     sync.Mutex
	server *http.Server
}

// NewAdapter создает HTTP-транспорт поверх общего пайплайна команд.
func NewAdapter(service *common.Service, store storage.Store, logger *slog.Logger, cfg Config) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Adapter{
		service: service,
		store:   store,
		logger:  logger.With("transport", Source),
		cfg:     cfg,
		auth:    newAuthenticator(cfg),
		cors:    newCORSPolicy(cfg),
	}
}

func (a *Adapter) Name() string { return Source }

// Start поднимает HTTP server; отмена ctx останавливает его.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("web transport already started")
	}
	srv := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	a.server = srv

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()
	go func() {
		a.logger.Info("listening", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("serve failed", "err", err)
		}
	}()
	return nil
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Handler возвращает корневой http.Handler со всеми маршрутами.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc, extra ...middleware) http.Handler {
		return chain(h, append([]middleware{a.timeoutMiddleware(), a.authMiddleware()}, extra...)...)
	}

	mux.HandleFunc("GET /v1/health", a.handleHealth)
	mux.Handle("GET /v1/me", authed(a.handleMe))
	mux.Handle("GET /v1/modules", authed(a.handleModules,
		a.requireAction("web:modules", core.Action{Module: "web", Command: "modules"})))

	mux.Handle("POST /v1/commands/execute", authed(a.handleExecute, a.maxBodyMiddleware()))

	// Маршруты моста: каждый кодируется в командную строку.
	mux.Handle("GET /v1/durable-clients/{id}/cqs", authed(a.handleListDurableCQs))
	mux.Handle("GET /v1/durable-clients/{id}/cqs/events", authed(a.handleCountEvents))
	mux.Handle("GET /v1/durable-clients/{id}/cqs/{cq}/events", authed(a.handleCountEvents))
	mux.Handle("POST /v1/durable-clients/{id}", authed(a.handleCloseDurableClient))
	mux.Handle("POST /v1/durable-clients/{id}/cqs/{cq}", authed(a.handleCloseDurableCQ))
	mux.Handle("DELETE /v1/regions/{path...}", authed(a.handleDestroyRegion))
	mux.Handle("GET /v1/deployed", authed(a.handleListDeployed))

	mux.Handle("GET /v1/metrics/latest", authed(a.handleLatestMetric,
		a.requireAction("web:metrics_latest", core.Action{Module: "member", Command: "read_metrics"})))
	mux.Handle("GET /v1/audit", authed(a.handleAudit,
		a.requireAction("web:audit_query", core.Action{Module: "audit", Command: "read"})))
	mux.Handle("GET /v1/config/entities", authed(a.handleConfigEntities,
		a.requireAction("web:config_query", core.Action{Module: "config", Command: "read"})))

	mux.Handle("/v1/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route_not_found")
	}))

	return chain(mux, a.requestIDMiddleware(), a.cors.middleware())
}

func (a *Adapter) requestIDMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sanitizeRequestID(r.Header.Get("X-Request-ID"))
			if id == "" {
				id = newRequestID()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := common.WithRequestID(context.WithValue(r.Context(), ctxRequestID, id), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) timeoutMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) authMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, code := a.auth.authenticate(r)
			if code != "" {
				writeError(w, r, http.StatusUnauthorized, code)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func (a *Adapter) maxBodyMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestBody)
			next.ServeHTTP(w, r)
		})
	}
}

// requireAction авторизует служебные маршруты; команды кластера
// авторизуются в общем пайплайне.
func (a *Adapter) requireAction(auditAction string, action core.Action) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFromContext(r.Context())
			if err := a.authorize(id.Subject, action); err != nil {
				writeError(w, r, http.StatusForbidden, "access_denied")
				a.writeAudit(r.Context(), id.Subject, auditAction, "denied", map[string]string{"auth_method": id.Method})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Adapter) authorize(subjectID string, action core.Action) error {
	if a.service == nil || a.service.Authorizer == nil {
		return nil
	}
	return a.service.Authorizer.Authorize(core.Subject{Source: Source, ID: subjectID}, action)
}

// sanitizeRequestID принимает до 64 символов [A-Za-z0-9._:-].
func sanitizeRequestID(v string) string {
	id := strings.TrimSpace(v)
	if id == "" || len(id) > 64 {
		return ""
	}
	bad := strings.IndexFunc(id, func(ch rune) bool {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return false
		case strings.ContainsRune("-_.:", ch):
			return false
		}
		return true
	})
	if bad >= 0 {
		return ""
	}
	return id
}
