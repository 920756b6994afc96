package function

import (
	"log/slog"

	"gridadmin/internal/cache"
	"gridadmin/internal/deploy"
	"gridadmin/internal/failure"
)

// Function — удаленно вызываемая единица работы.
type Function interface {
	// ID — стабильный идентификатор для маршрутизации вызова.
	ID() string
	// Execute выполняет работу; результат уходит через ctx.Sender().
	Execute(ctx *Context)
	HasResult() bool
	// OptimizeForWrite — подсказка планировщику, не влияет на корректность.
	OptimizeForWrite() bool
	// IsHA разрешает транспорту повторить вызов на другом участнике.
	IsHA() bool
}

// Context — дескриптор одного вызова; не разделяется между вызовами.
type Context struct {
	functionID string
	args       any
	member     cache.Member
	cache      cache.Cache
	deployer   deploy.Lister
	sender     ResultSender
	logger     *slog.Logger
	failures   *failure.Handler
}

// ContextConfig задает зависимости вызова.
type ContextConfig struct {
	FunctionID string
	Arguments  any
	Member     cache.Member
	Cache      cache.Cache
	Deployer   deploy.Lister
	Sender     ResultSender
	Logger     *slog.Logger
	Failures   *failure.Handler
}

// NewContext создает контекст вызова; Sender обязателен.
func NewContext(cfg ContextConfig) *Context {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	failures := cfg.Failures
	if failures == nil {
		failures = failure.NewHandler(logger, nil)
	}
	sender := cfg.Sender
	if sender == nil {
		sender = NewCollector()
	}
	return &Context{
		functionID: cfg.FunctionID,
		args:       cfg.Arguments,
		member:     cfg.Member,
		cache:      cfg.Cache,
		deployer:   cfg.Deployer,
		sender:     sender,
		logger:     logger.With("function", cfg.FunctionID, "member", cfg.Member.DisplayID()),
		failures:   failures,
	}
}

func (c *Context) FunctionID() string         { return c.functionID }
func (c *Context) Arguments() any             { return c.args }
func (c *Context) Member() cache.Member       { return c.member }
func (c *Context) Cache() cache.Cache         { return c.cache }
func (c *Context) Deployer() deploy.Lister    { return c.deployer }
func (c *Context) Sender() ResultSender       { return c.sender }
func (c *Context) Logger() *slog.Logger       { return c.logger }
func (c *Context) Failures() *failure.Handler { return c.failures }
