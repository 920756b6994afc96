package web

import (
	"net/http"
	"strings"
)

// corsPolicy проверяет Origin и отвечает на preflight-запросы.
type corsPolicy struct {
	origins      map[string]struct{}
	methods      map[string]struct{}
	allowMethods string
	allowHeaders string
}

func newCORSPolicy(cfg Config) corsPolicy {
	p := corsPolicy{
		origins:      make(map[string]struct{}, len(cfg.CORSAllowedOrigins)),
		methods:      make(map[string]struct{}, len(cfg.CORSAllowedMethods)),
		allowMethods: strings.Join(cfg.CORSAllowedMethods, ", "),
		allowHeaders: strings.Join(cfg.CORSAllowedHeaders, ", "),
	}
	for _, o := range cfg.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			p.origins[o] = struct{}{}
		}
	}
	for _, m := range cfg.CORSAllowedMethods {
		p.methods[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}
	return p
}

func (p corsPolicy) middleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := p.origins[origin]; !ok {
				writeError(w, r, http.StatusForbidden, "cors_denied")
				return
			}
			h := w.Header()
			h.Set("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", p.allowMethods)
			h.Set("Access-Control-Allow-Headers", p.allowHeaders)
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			requested := strings.ToUpper(strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")))
			if _, ok := p.methods[requested]; requested != "" && !ok {
				writeError(w, r, http.StatusForbidden, "cors_method_denied")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
