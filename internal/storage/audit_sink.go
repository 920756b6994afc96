package storage

import "context"

// AuditWriter — приемник аудиторных событий для транспортов.
type AuditWriter interface {
	Write(ctx context.Context, ev AuditEvent) error
}

// AuditFunc адаптирует функцию к AuditWriter.
type AuditFunc func(ctx context.Context, ev AuditEvent) error

func (f AuditFunc) Write(ctx context.Context, ev AuditEvent) error { return f(ctx, ev) }
