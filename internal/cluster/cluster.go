package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"gridadmin/internal/cache"
	"gridadmin/internal/deploy"
	"gridadmin/internal/failure"
	"gridadmin/internal/function"
)

const defaultPoolSize = 8

var (
	ErrMemberExists  = errors.New("member already joined")
	ErrUnknownMember = errors.New("unknown member")
	ErrNoMembers     = errors.New("no members selected")
	errNoResult      = errors.New("function finished without a last result")
	errInvalidMember = errors.New("invalid member")
)

// Member — участник кластера с локальным кэшем и подсистемой развертывания.
type Member struct {
	identity cache.Member
	groups   []string
	cache    cache.Cache
	deployer deploy.Lister
	failed   atomic.Bool
}

func (m *Member) Identity() cache.Member  { return m.identity }
func (m *Member) Cache() cache.Cache      { return m.cache }
func (m *Member) Deployer() deploy.Lister { return m.deployer }
func (m *Member) Available() bool         { return !m.failed.Load() }

// Groups возвращает копию списка групп.
func (m *Member) Groups() []string {
	out := make([]string, len(m.groups))
	copy(out, m.groups)
	return out
}

// InAnyGroup сообщает, входит ли участник хотя бы в одну из групп.
func (m *Member) InAnyGroup(groups []string) bool {
	for _, want := range groups {
		for _, g := range m.groups {
			if g == want {
				return true
			}
		}
	}
	return false
}

func (m *Member) matches(nameOrID string) bool {
	return m.identity.Name == nameOrID || m.identity.ID == nameOrID
}

// MemberConfig описывает присоединяемого участника.
type MemberConfig struct {
	Name     string
	ID       string
	Groups   []string
	Cache    cache.Cache
	Deployer deploy.Lister
}

// Config задает зависимости кластера.
type Config struct {
	Functions *function.Registry
	Logger    *slog.Logger
	Failures  *failure.Handler
	// ReadPool и WritePool ограничивают параллелизм по типу функции.
	ReadPool  int
	WritePool int
}

// Cluster выбирает участников и рассылает им функции.
type Cluster struct {
	mu        sync.RWMutex
	members   []*Member
	functions *function.Registry
	logger    *slog.Logger
	failures  *failure.Handler
	readPool  chan struct{}
	writePool chan struct{}
}

// New создает пустой кластер.
func New(cfg Config) *Cluster {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	failures := cfg.Failures
	if failures == nil {
		failures = failure.NewHandler(logger, nil)
	}
	functions := cfg.Functions
	if functions == nil {
		functions = function.NewRegistry()
	}
	if cfg.ReadPool <= 0 {
		cfg.ReadPool = defaultPoolSize
	}
	if cfg.WritePool <= 0 {
		cfg.WritePool = defaultPoolSize
	}
	return &Cluster{
		functions: functions,
		logger:    logger,
		failures:  failures,
		readPool:  make(chan struct{}, cfg.ReadPool),
		writePool: make(chan struct{}, cfg.WritePool),
	}
}

// Join добавляет участника; пустой ID заменяется системным.
func (c *Cluster) Join(ctx context.Context, mc MemberConfig) (*Member, error) {
	if mc.Cache == nil {
		return nil, fmt.Errorf("member %q has no cache: %w", mc.Name, errInvalidMember)
	}
	id := mc.ID
	if id == "" {
		id = NewMemberID(ctx, mc.Name)
	}
	deployer := mc.Deployer
	if deployer == nil {
		deployer = deploy.Dir{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members {
		if (mc.Name != "" && m.identity.Name == mc.Name) || m.identity.ID == id {
			return nil, fmt.Errorf("%s: %w", mc.Name, ErrMemberExists)
		}
	}
	m := &Member{
		identity: cache.Member{ID: id, Name: mc.Name},
		groups:   append([]string(nil), mc.Groups...),
		cache:    mc.Cache,
		deployer: deployer,
	}
	c.members = append(c.members, m)
	return m, nil
}

// Members возвращает всех участников в порядке присоединения.
func (c *Cluster) Members() []*Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Member(nil), c.members...)
}

// Member находит участника по имени или id.
func (c *Cluster) Member(nameOrID string) (*Member, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.members {
		if m.matches(nameOrID) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", nameOrID, ErrUnknownMember)
}

// Select возвращает доступных участников по фильтрам.
// member == nil — без фильтра по участнику; пустые groups — без фильтра по группам.
func (c *Cluster) Select(member *string, groups []string) []*Member {
	var out []*Member
	for _, m := range c.Members() {
		if !m.Available() {
			continue
		}
		if member != nil && !m.matches(*member) {
			continue
		}
		if len(groups) > 0 && !m.InAnyGroup(groups) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Execution — собранные результаты одной рассылки.
type Execution struct {
	Results []function.Result
	// Failed — участники, на которых функция эскалировала сбой процесса.
	Failed []string
}

// Execute рассылает функцию по id выбранным участникам и собирает результаты.
// Для функций без результата возвращается сразу, не дожидаясь выполнения.
func (c *Cluster) Execute(ctx context.Context, functionID string, args any, members []*Member) (Execution, error) {
	fn, err := c.functions.Lookup(functionID)
	if err != nil {
		return Execution{}, err
	}
	if len(members) == 0 {
		return Execution{}, ErrNoMembers
	}

	pool := c.readPool
	if fn.OptimizeForWrite() {
		pool = c.writePool
	}

	collectors := make([]*function.Collector, len(members))
	escalated := make([]bool, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		i, m := i, m
		collectors[i] = function.NewCollector()
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case pool <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-pool }()
			escalated[i] = c.invoke(fn, args, m, collectors[i])
		}()
	}

	if !fn.HasResult() {
		return Execution{}, nil
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return Execution{}, ctx.Err()
	}

	var exec Execution
	for i, m := range members {
		id := m.identity.DisplayID()
		if escalated[i] {
			exec.Failed = append(exec.Failed, id)
			continue
		}
		if !collectors[i].Terminated() {
			exec.Results = append(exec.Results, function.FatalFailure(id, errNoResult))
			continue
		}
		exec.Results = append(exec.Results, collectors[i].Results()...)
	}
	return exec, nil
}

// invoke выполняет функцию на участнике. Сбой процесса, дошедший сюда,
// выводит участника из работы; возвращает true в этом случае.
func (c *Cluster) invoke(fn function.Function, args any, m *Member, sender function.ResultSender) (escalated bool) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err, ok := rec.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", rec)
		}
		if !failure.IsFatal(err) {
			c.logger.Error("function escaped with panic", "member", m.identity.DisplayID(), "function", fn.ID(), "err", err)
			_ = sender.LastResult(function.FatalFailure(m.identity.DisplayID(), err))
			return
		}
		m.failed.Store(true)
		c.logger.Error("member stopped accepting work",
			"member", m.identity.DisplayID(), "function", fn.ID(), "err", err)
		escalated = true
	}()

	fctx := function.NewContext(function.ContextConfig{
		FunctionID: fn.ID(),
		Arguments:  args,
		Member:     m.identity,
		Cache:      m.cache,
		Deployer:   m.deployer,
		Sender:     sender,
		Logger:     c.logger,
		Failures:   c.failures,
	})
	fn.Execute(fctx)
	return false
}

// Functions возвращает реестр функций кластера.
func (c *Cluster) Functions() *function.Registry { return c.functions }

// Failures возвращает обработчик сбоев процесса.
func (c *Cluster) Failures() *failure.Handler { return c.failures }
