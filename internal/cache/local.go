package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Local реализует Cache в памяти процесса.
type Local struct {
	mu      sync.Mutex
	member  Member
	closed  bool
	regions map[string]*localRegion
	clients map[string]*localClient
}

// NewLocal создает пустой кэш для участника.
func NewLocal(member Member) *Local {
	return &Local{
		member:  member,
		regions: make(map[string]*localRegion),
		clients: make(map[string]*localClient),
	}
}

type localSystem struct {
	member Member
}

func (s localSystem) LocalMember() Member { return s.member }

// DistributedSystem возвращает ErrCacheClosed для закрытого кэша.
func (c *Local) DistributedSystem() (DistributedSystem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	return localSystem{member: c.member}, nil
}

// CreateRegion создает регион по пути.
func (c *Local) CreateRegion(path string) (Region, error) {
	full, err := NormalizePath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	if _, exists := c.regions[full]; exists {
		return nil, fmt.Errorf("%s: %w", full, ErrRegionExists)
	}
	r := &localRegion{cache: c, path: full}
	c.regions[full] = r
	return r, nil
}

// Region возвращает регион или ErrRegionNotFound.
func (c *Local) Region(path string) (Region, error) {
	full, err := NormalizePath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	r, ok := c.regions[full]
	if !ok {
		return nil, fmt.Errorf("%s: %w", full, ErrRegionNotFound)
	}
	return r, nil
}

// Regions возвращает отсортированные пути живых регионов.
func (c *Local) Regions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.regions))
	for p := range c.regions {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RegisterDurableClient добавляет прокси durable-клиента с очередями CQ.
func (c *Local) RegisterDurableClient(id string, queues map[string]int) (DurableClient, error) {
	if id == "" {
		return nil, fmt.Errorf("durable client id is empty: %w", ErrClientNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	cl := &localClient{id: id, cqs: make(map[string]int, len(queues))}
	for name, size := range queues {
		cl.cqs[name] = size
	}
	c.clients[id] = cl
	return cl, nil
}

// DurableClient возвращает прокси клиента или ErrClientNotFound.
func (c *Local) DurableClient(id string) (DurableClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	cl, ok := c.clients[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrClientNotFound)
	}
	return cl, nil
}

// DurableClients возвращает id открытых durable-клиентов.
func (c *Local) DurableClients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.clients))
	for id, cl := range c.clients {
		if !cl.isClosed() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close закрывает кэш; повторный вызов безопасен.
func (c *Local) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Local) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type localRegion struct {
	cache     *Local
	path      string
	destroyed bool
}

func (r *localRegion) Name() string {
	return r.path[strings.LastIndex(r.path, Separator)+1:]
}

func (r *localRegion) FullPath() string { return r.path }

// DestroyRegion удаляет регион вместе с подрегионами.
func (r *localRegion) DestroyRegion() error {
	c := r.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	if r.destroyed {
		return fmt.Errorf("%s: %w", r.path, ErrRegionDestroyed)
	}
	prefix := r.path + Separator
	for p, sub := range c.regions {
		if p == r.path || strings.HasPrefix(p, prefix) {
			sub.destroyed = true
			delete(c.regions, p)
		}
	}
	return nil
}

type localClient struct {
	mu     sync.Mutex
	id     string
	closed bool
	cqs    map[string]int
}

func (cl *localClient) ID() string { return cl.id }

func (cl *localClient) isClosed() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.closed
}

func (cl *localClient) CQs() []string {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	names := make([]string, 0, len(cl.cqs))
	for name := range cl.cqs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cl *localClient) QueueSize() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	total := 0
	for _, n := range cl.cqs {
		total += n
	}
	return total
}

func (cl *localClient) CQQueueSize(name string) (int, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	n, ok := cl.cqs[name]
	if !ok {
		return 0, fmt.Errorf("%s/%s: %w", cl.id, name, ErrCQNotFound)
	}
	return n, nil
}

func (cl *localClient) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return fmt.Errorf("%s: %w", cl.id, ErrClientClosed)
	}
	cl.closed = true
	cl.cqs = map[string]int{}
	return nil
}

func (cl *localClient) CloseCQ(name string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return fmt.Errorf("%s: %w", cl.id, ErrClientClosed)
	}
	if _, ok := cl.cqs[name]; !ok {
		return fmt.Errorf("%s/%s: %w", cl.id, name, ErrCQNotFound)
	}
	delete(cl.cqs, name)
	return nil
}
