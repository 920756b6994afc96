package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"gridadmin/internal/storage"
)

var errInvalidEntity = errors.New("config entity requires kind and attribute value")

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open инициализирует соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			module TEXT NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_module_ts ON metrics(module, ts);`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			subject TEXT,
			action TEXT,
			source TEXT,
			status TEXT,
			request_id TEXT,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_subject_ts ON audit_events(subject, ts);`,
		`CREATE TABLE IF NOT EXISTS config_entities (
			grp TEXT NOT NULL,
			kind TEXT NOT NULL,
			attr_name TEXT NOT NULL,
			attr_value TEXT NOT NULL,
			body BLOB,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (grp, kind, attr_value)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func nowIfZero(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}

// SaveMetric сохраняет снимок.
func (s *Store) SaveMetric(ctx context.Context, rec storage.MetricRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO metrics(module, payload, ts) VALUES(?,?,?)`, rec.Module, rec.Payload, nowIfZero(rec.TS))
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// SaveAudit сохраняет аудиторное событие.
func (s *Store) SaveAudit(ctx context.Context, ev storage.AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events(subject, action, source, status, request_id, payload, ts) VALUES(?,?,?,?,?,?,?)`,
		ev.Subject, ev.Action, ev.Source, ev.Status, ev.RequestID, ev.Payload, nowIfZero(ev.TS))
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// LatestMetric возвращает последний снимок по имени.
func (s *Store) LatestMetric(ctx context.Context, module string) (storage.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT module, payload, ts FROM metrics WHERE module = ? ORDER BY ts DESC, id DESC LIMIT 1`, module)
	var rec storage.MetricRecord
	var ts string
	if err := row.Scan(&rec.Module, &rec.Payload, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MetricRecord{}, fmt.Errorf("latest metric %s: %w", module, storage.ErrNotFound)
		}
		return storage.MetricRecord{}, fmt.Errorf("query latest metric: %w", err)
	}
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.MetricRecord{}, fmt.Errorf("parse metric timestamp: %w", err)
	}
	rec.TS = parsedTS
	return rec, nil
}

// QueryAudit возвращает аудит по фильтрам, новые события первыми.
func (s *Store) QueryAudit(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	to := q.To
	if to.IsZero() {
		to = time.Now()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT subject, action, source, status, request_id, payload, ts
FROM audit_events
WHERE ts >= ? AND ts <= ? AND (? = '' OR subject = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from.UTC(), to.UTC(), q.Subject, q.Subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEvent, 0, limit)
	for rows.Next() {
		var ev storage.AuditEvent
		var ts string
		if err := rows.Scan(&ev.Subject, &ev.Action, &ev.Source, &ev.Status, &ev.RequestID, &ev.Payload, &ts); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if ev.TS, err = parseSQLiteTS(ts); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return events, nil
}

// PutConfigEntity добавляет или заменяет элемент конфигурации.
func (s *Store) PutConfigEntity(ctx context.Context, e storage.ConfigEntity) error {
	if e.Kind == "" || e.AttributeValue == "" {
		return errInvalidEntity
	}
	group := e.Group
	if group == "" {
		group = storage.DefaultGroup
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO config_entities(grp, kind, attr_name, attr_value, body, updated_at) VALUES(?,?,?,?,?,?)
ON CONFLICT(grp, kind, attr_value) DO UPDATE SET attr_name = excluded.attr_name, body = excluded.body, updated_at = excluded.updated_at`,
		group, e.Kind, e.AttributeName, e.AttributeValue, e.Body, nowIfZero(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert config entity: %w", err)
	}
	return nil
}

// ApplyConfigChange применяет изменение; повторное удаление не ошибка.
func (s *Store) ApplyConfigChange(ctx context.Context, ch storage.ConfigChange) error {
	switch ch.Op {
	case storage.ConfigPut:
		return s.PutConfigEntity(ctx, ch.Entity)
	case storage.ConfigDelete:
		group := ch.Entity.Group
		if group == "" {
			group = storage.DefaultGroup
		}
		_, err := s.db.ExecContext(ctx, `DELETE FROM config_entities WHERE grp = ? AND kind = ? AND attr_value = ?`,
			group, ch.Entity.Kind, ch.Entity.AttributeValue)
		if err != nil {
			return fmt.Errorf("delete config entity: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config op %q", ch.Op)
	}
}

// ConfigEntities возвращает элементы группы; пустой kind — все виды.
func (s *Store) ConfigEntities(ctx context.Context, group, kind string) ([]storage.ConfigEntity, error) {
	if group == "" {
		group = storage.DefaultGroup
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT grp, kind, attr_name, attr_value, body, updated_at
FROM config_entities
WHERE grp = ? AND (? = '' OR kind = ?)
ORDER BY kind, attr_value`, group, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("query config entities: %w", err)
	}
	defer rows.Close()

	var out []storage.ConfigEntity
	for rows.Next() {
		var e storage.ConfigEntity
		var ts string
		if err := rows.Scan(&e.Group, &e.Kind, &e.AttributeName, &e.AttributeValue, &e.Body, &ts); err != nil {
			return nil, fmt.Errorf("scan config entity: %w", err)
		}
		if e.UpdatedAt, err = parseSQLiteTS(ts); err != nil {
			return nil, fmt.Errorf("parse config timestamp: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config entities: %w", err)
	}
	return out, nil
}

// Prune удаляет метрики и аудит старше before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, stmt := range []string{
		`DELETE FROM metrics WHERE ts < ?`,
		`DELETE FROM audit_events WHERE ts < ?`,
	} {
		res, err := s.db.ExecContext(ctx, stmt, before.UTC())
		if err != nil {
			return total, fmt.Errorf("prune: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Write реализует storage.AuditWriter.
func (s *Store) Write(ctx context.Context, ev storage.AuditEvent) error {
	return s.SaveAudit(ctx, ev)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarshalPayload сериализует снимок в JSON.
func MarshalPayload(data interface{}) ([]byte, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return buf, nil
}
