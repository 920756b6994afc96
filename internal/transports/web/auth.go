package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	authBearer       = "bearer"
	authLegacyHeader = "legacy_header"
	legacyHeader     = "X-Subject-ID"
)

// identity — аутентифицированный вызывающий.
type identity struct {
	Subject string
	Roles   []string
	Method  string
}

// authenticator сопоставляет запрос с identity.
type authenticator struct {
	tokens map[string]TokenEntry // sha256(token) hex -> запись
	legacy bool
}

func newAuthenticator(cfg Config) authenticator {
	tokens := make(map[string]TokenEntry, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		h := strings.ToLower(strings.TrimSpace(t.TokenSHA256))
		if len(h) != sha256.Size*2 || !t.Enabled || t.Subject == "" {
			continue
		}
		tokens[h] = t
	}
	return authenticator{tokens: tokens, legacy: cfg.AllowLegacySubjectHeader}
}

// authenticate возвращает identity или код ошибки для 401.
func (au authenticator) authenticate(r *http.Request) (identity, string) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if found && strings.EqualFold(scheme, authBearer) {
		return au.bearer(strings.TrimSpace(token))
	}
	if au.legacy {
		if subject := strings.TrimSpace(r.Header.Get(legacyHeader)); subject != "" {
			return identity{Subject: subject, Method: authLegacyHeader}, ""
		}
	}
	return identity{}, "auth_required"
}

func (au authenticator) bearer(token string) (identity, string) {
	if token == "" {
		return identity{}, "invalid_token"
	}
	sum := sha256.Sum256([]byte(token))
	want := hex.EncodeToString(sum[:])
	entry, ok := au.tokens[want]
	if !ok || subtle.ConstantTimeCompare([]byte(strings.ToLower(entry.TokenSHA256)), []byte(want)) != 1 {
		return identity{}, "invalid_token"
	}
	return identity{Subject: entry.Subject, Roles: append([]string(nil), entry.Roles...), Method: authBearer}, ""
}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func identityFromContext(ctx context.Context) identity {
	id, _ := ctx.Value(ctxIdentity).(identity)
	return id
}

func subjectIDFromContext(ctx context.Context) string {
	return identityFromContext(ctx).Subject
}
