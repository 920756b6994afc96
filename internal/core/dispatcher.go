package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gridadmin/internal/command"
)

var (
	errProviderExists   = errors.New("provider already registered")
	errCommandExists    = errors.New("command already registered")
	errInvalidArguments = errors.New("invalid arguments")

	// ErrUnknownCommand возвращается для ключевого слова без модуля.
	ErrUnknownCommand = errors.New("unknown command")
)

// Registry хранит модули и сопоставляет им ключевые слова команд.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]CommandProvider
	commands  map[string]CommandProvider
}

// NewRegistry создает пустой реестр модулей.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]CommandProvider),
		commands:  make(map[string]CommandProvider),
	}
}

// Register добавляет модуль; имя и каждое ключевое слово должны быть уникальны.
func (r *Registry) Register(ctx context.Context, provider CommandProvider) error {
	if provider == nil {
		return fmt.Errorf("provider is nil: %w", errInvalidArguments)
	}
	name := provider.Name()
	if name == "" {
		return fmt.Errorf("provider name is empty: %w", errInvalidArguments)
	}
	keywords := provider.Commands()
	if len(keywords) == 0 {
		return fmt.Errorf("%s serves no commands: %w", name, errInvalidArguments)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%s: %w", name, errProviderExists)
	}
	for _, kw := range keywords {
		if owner, exists := r.commands[kw]; exists {
			return fmt.Errorf("%q owned by %s: %w", kw, owner.Name(), errCommandExists)
		}
	}
	if err := provider.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	r.providers[name] = provider
	for _, kw := range keywords {
		r.commands[kw] = provider
	}
	return nil
}

// Module возвращает имя модуля, обслуживающего ключевое слово.
func (r *Registry) Module(keyword string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prov, ok := r.commands[keyword]
	if !ok {
		return "", false
	}
	return prov.Name(), true
}

// Execute вызывает модуль по ключевому слову команды.
func (r *Registry) Execute(ctx context.Context, cmd command.Command) (Response, error) {
	r.mu.RLock()
	prov, ok := r.commands[cmd.Keyword]
	r.mu.RUnlock()
	if !ok {
		return Failed("command_not_found", fmt.Sprintf("Command %q is not supported", cmd.Keyword)),
			fmt.Errorf("%s: %w", cmd.Keyword, ErrUnknownCommand)
	}
	return prov.Execute(ctx, cmd)
}

// Process разбирает командную строку и выполняет ее.
func (r *Registry) Process(ctx context.Context, line string) (Response, error) {
	cmd, err := command.Parse(line)
	if err != nil {
		return Failed("bad_command", err.Error()), err
	}
	return r.Execute(ctx, cmd)
}

// ProcessCommand выполняет строку и возвращает ответ в JSON.
func (r *Registry) ProcessCommand(ctx context.Context, line string) (string, error) {
	resp, err := r.Process(ctx, line)
	rendered, renderErr := Render(resp)
	if renderErr != nil {
		return "", renderErr
	}
	return rendered, err
}

// Render сериализует ответ в JSON.
func Render(resp Response) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("render response: %w", err)
	}
	return string(data), nil
}

// Providers возвращает отсортированный список модулей.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands возвращает отсортированный список ключевых слов.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for kw := range r.commands {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
