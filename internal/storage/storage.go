package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultGroup — группа конфигурации, общая для всего кластера.
const DefaultGroup = "cluster"

// ErrNotFound возвращается, когда запись отсутствует.
var ErrNotFound = errors.New("record not found")

// MetricRecord сохраняет снимок состояния; Module — имя участника или модуля.
type MetricRecord struct {
	Module  string
	Payload []byte
	TS      time.Time
}

// AuditEvent фиксирует действия пользователей/транспорта.
type AuditEvent struct {
	Subject   string
	Action    string
	Source    string
	Status    string
	RequestID string
	Payload   []byte
	TS        time.Time
}

// AuditQuery задает фильтры выборки аудита.
type AuditQuery struct {
	From    time.Time
	To      time.Time
	Subject string
	Limit   int
}

// ConfigEntity — элемент сохраненной конфигурации кластера,
// например регион. Ключ: (Group, Kind, AttributeValue).
type ConfigEntity struct {
	Group          string
	Kind           string
	AttributeName  string
	AttributeValue string
	Body           []byte
	UpdatedAt      time.Time
}

// ConfigOp — операция изменения конфигурации.
type ConfigOp string

const (
	ConfigPut    ConfigOp = "put"
	ConfigDelete ConfigOp = "delete"
)

// ConfigChange описывает изменение, которое нужно применить к конфигурации.
type ConfigChange struct {
	Op     ConfigOp
	Entity ConfigEntity
}

// ConfigStore хранит конфигурацию кластера.
type ConfigStore interface {
	PutConfigEntity(ctx context.Context, e ConfigEntity) error
	// ApplyConfigChange идемпотентна: удаление отсутствующего элемента не ошибка.
	ApplyConfigChange(ctx context.Context, ch ConfigChange) error
	ConfigEntities(ctx context.Context, group, kind string) ([]ConfigEntity, error)
}

// Store описывает операции хранилища.
type Store interface {
	ConfigStore
	SaveMetric(ctx context.Context, rec MetricRecord) error
	SaveAudit(ctx context.Context, ev AuditEvent) error
	LatestMetric(ctx context.Context, module string) (MetricRecord, error)
	QueryAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	Close() error
}
