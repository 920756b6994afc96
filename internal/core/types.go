package core

import (
	"context"

	"gridadmin/internal/command"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Response описывает унифицированный результат выполнения команды.
type Response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
}

// Failed возвращает error-ответ с кодом и сообщением.
func Failed(code, message string) Response {
	return Response{Status: StatusError, ErrorCode: code, Message: message}
}

// CommandProvider определяет контракт для модулей.
// Commands — ключевые слова, которые модуль обслуживает.
type CommandProvider interface {
	Name() string
	Commands() []string
	Init(ctx context.Context) error
	Execute(ctx context.Context, cmd command.Command) (Response, error)
}
