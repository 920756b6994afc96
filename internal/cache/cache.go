package cache

import (
	"errors"
	"strings"
)

// Separator разделяет компоненты пути региона.
const Separator = "/"

var (
	ErrCacheClosed       = errors.New("cache is closed")
	ErrRegionNotFound    = errors.New("region not found")
	ErrRegionExists      = errors.New("region already exists")
	ErrRegionDestroyed   = errors.New("region has been destroyed")
	ErrClientNotFound    = errors.New("durable client not found")
	ErrCQNotFound        = errors.New("durable cq not found")
	ErrClientClosed      = errors.New("durable client is closed")
	ErrInvalidRegionPath = errors.New("invalid region path")
)

// Member — идентичность локального участника кластера.
type Member struct {
	ID   string
	Name string
}

// DisplayID возвращает имя участника, а при его отсутствии системный id.
func (m Member) DisplayID() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// DistributedSystem дает доступ к локальному участнику.
type DistributedSystem interface {
	LocalMember() Member
}

// Region — живой дескриптор региона.
type Region interface {
	Name() string
	FullPath() string
	DestroyRegion() error
}

// DurableClient — серверный прокси durable-клиента с его CQ.
type DurableClient interface {
	ID() string
	CQs() []string
	QueueSize() int
	CQQueueSize(name string) (int, error)
	Close() error
	CloseCQ(name string) error
}

// Cache описывает контракт локального движка кэша.
type Cache interface {
	Region(path string) (Region, error)
	Regions() []string
	DistributedSystem() (DistributedSystem, error)
	DurableClient(id string) (DurableClient, error)
	DurableClients() []string
	IsClosed() bool
}

// NormalizePath приводит путь региона к виду "/name".
func NormalizePath(path string) (string, error) {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, Separator)
	if p == "" || strings.HasSuffix(p, Separator) {
		return "", ErrInvalidRegionPath
	}
	return Separator + p, nil
}
