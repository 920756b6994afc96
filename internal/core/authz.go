package core

import (
	"fmt"
	"strings"
)

// Subject описывает источник команды и его идентификатор.
type Subject struct {
	Source string
	ID     string
}

func (s Subject) key() string { return s.Source + "/" + s.ID }

// Action описывает целевую операцию: модуль и ключевое слово команды.
type Action struct {
	Module  string
	Command string
}

// Authorizer отвечает за решение доступа к действию.
type Authorizer interface {
	Authorize(subject Subject, action Action) error
}

// AllowlistAuthorizer реализует deny-by-default по source/id
// с необязательным сужением до набора команд.
type AllowlistAuthorizer struct {
	allowed map[string]map[string]struct{}
	scopes  map[string][]string
}

// NewAllowlistAuthorizer создает authorizer из map[source][]id.
func NewAllowlistAuthorizer(src map[string][]string) *AllowlistAuthorizer {
	allowed := make(map[string]map[string]struct{}, len(src))
	for source, ids := range src {
		idSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				idSet[id] = struct{}{}
			}
		}
		allowed[source] = idSet
	}
	return &AllowlistAuthorizer{allowed: allowed, scopes: make(map[string][]string)}
}

// Restrict ограничивает subject ("source/id") командами с указанными
// префиксами ключевых слов или именами модулей, например "list" или "durable".
func (a *AllowlistAuthorizer) Restrict(subject string, scopes []string) {
	var kept []string
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	a.scopes[subject] = kept
}

// Authorize возвращает ошибку, если subject не в allowlist
// или действие вне его области.
func (a *AllowlistAuthorizer) Authorize(subject Subject, action Action) error {
	if subject.Source == "" || subject.ID == "" {
		return fmt.Errorf("empty subject: %w", errInvalidArguments)
	}
	bySource, ok := a.allowed[subject.Source]
	if !ok {
		return fmt.Errorf("source %s is not allowed", subject.Source)
	}
	if _, ok := bySource[subject.ID]; !ok {
		return fmt.Errorf("subject %s is not allowed", subject.key())
	}
	scopes, restricted := a.scopes[subject.key()]
	if !restricted {
		return nil
	}
	for _, s := range scopes {
		if s == action.Module || action.Command == s || strings.HasPrefix(action.Command, s+" ") {
			return nil
		}
	}
	return fmt.Errorf("subject %s may not run %q", subject.key(), action.Command)
}
