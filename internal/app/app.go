package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gridadmin/internal/cache"
	"gridadmin/internal/cluster"
	"gridadmin/internal/config"
	"gridadmin/internal/core"
	"gridadmin/internal/deploy"
	"gridadmin/internal/failure"
	"gridadmin/internal/function"
	"gridadmin/internal/functions"
	"gridadmin/internal/modules/deployed"
	"gridadmin/internal/modules/durable"
	"gridadmin/internal/modules/member"
	"gridadmin/internal/modules/region"
	"gridadmin/internal/storage"
	"gridadmin/internal/storage/sqlite"
	"gridadmin/internal/transports/common"
	"gridadmin/internal/transports/web"
)

// App агрегирует зависимости ядра.
type App struct {
	Registry   *core.Registry
	Cluster    *cluster.Cluster
	Transports *core.TransportManager
	Authorizer core.Authorizer
	Limiter    *common.RateLimiter
	Store      *sqlite.Store
	Config     config.Config
	Logger     *slog.Logger

	members *member.Module
	fatal   chan error
}

// NewApp строит приложение: кластер, реестр модулей, хранилище и транспорты.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, fatal: make(chan error, 1)}

	st, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.Store = st

	fns := function.NewRegistry()
	if err := fns.Register(functions.All()...); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register functions: %w", err)
	}
	a.Cluster = cluster.New(cluster.Config{
		Functions: fns,
		Logger:    logger,
		Failures:  failure.NewHandler(logger, a.onFatal),
		ReadPool:  cfg.Cluster.ReadPool,
		WritePool: cfg.Cluster.WritePool,
	})
	if err := a.joinMembers(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	a.members = member.New(a.Cluster, nil)
	a.Registry = core.NewRegistry()
	for _, p := range []core.CommandProvider{
		deployed.New(a.Cluster),
		region.New(a.Cluster, st, logger),
		durable.New(a.Cluster),
		a.members,
	} {
		if err := a.Registry.Register(ctx, p); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("register %s module: %w", p.Name(), err)
		}
	}

	authz := core.NewAllowlistAuthorizer(cfg.Security.AuthAllowlist)
	for subject, scopes := range cfg.Security.Scopes {
		authz.Restrict(subject, scopes)
	}
	a.Authorizer = authz
	a.Limiter = common.NewRateLimiter(cfg.Security.RateLimit, time.Second)

	a.Transports = core.NewTransportManager()
	if cfg.Web.Enabled {
		if err := a.Transports.Register(a.newWebAdapter()); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("register web transport: %w", err)
		}
	}
	return a, nil
}

// regionSeedKind отмечает регионы, однажды опубликованные из файла конфигурации.
const regionSeedKind = "region_seed"

// joinMembers присоединяет участников из конфигурации. Регион из файла
// создается, только пока он жив в сохраненной конфигурации кластера.
func (a *App) joinMembers(ctx context.Context) error {
	for _, mc := range a.Config.Cluster.Members {
		id := mc.ID
		if id == "" {
			id = cluster.NewMemberID(ctx, mc.Name)
		}
		local := cache.NewLocal(cache.Member{ID: id, Name: mc.Name})
		for _, path := range mc.Regions {
			live, err := a.seedRegion(ctx, mc, path)
			if err != nil {
				return err
			}
			if !live {
				a.Logger.Debug("region destroyed earlier, skipped", "member", mc.Name, "region", path)
				continue
			}
			if _, err := local.CreateRegion(path); err != nil {
				return fmt.Errorf("member %s: create region %s: %w", mc.Name, path, err)
			}
		}
		for _, dc := range mc.DurableClients {
			if _, err := local.RegisterDurableClient(dc.ID, dc.CQs); err != nil {
				return fmt.Errorf("member %s: durable client %s: %w", mc.Name, dc.ID, err)
			}
		}
		if _, err := a.Cluster.Join(ctx, cluster.MemberConfig{
			Name:     mc.Name,
			ID:       id,
			Groups:   mc.Groups,
			Cache:    local,
			Deployer: deploy.Dir{Path: mc.DeployDir},
		}); err != nil {
			return fmt.Errorf("join member %s: %w", mc.Name, err)
		}
		a.Logger.Info("member joined", "member", mc.Name, "id", id, "groups", strings.Join(mc.Groups, ","))
	}
	return nil
}

// seedRegion публикует регион при первом появлении в файле конфигурации и
// сообщает, есть ли он в сохраненной конфигурации хотя бы одной группы участника.
func (a *App) seedRegion(ctx context.Context, mc config.Member, path string) (bool, error) {
	full, err := cache.NormalizePath(path)
	if err != nil {
		return false, fmt.Errorf("member %s: region %s: %w", mc.Name, path, err)
	}
	name := strings.TrimPrefix(full, cache.Separator)

	live := false
	for _, group := range groupsOrDefault(mc.Groups) {
		seeded, err := a.hasEntity(ctx, group, regionSeedKind, full)
		if err != nil {
			return false, err
		}
		if seeded {
			exists, err := a.hasEntity(ctx, group, functions.EntityRegion, name)
			if err != nil {
				return false, err
			}
			live = live || exists
			continue
		}
		for _, e := range []storage.ConfigEntity{
			{Group: group, Kind: functions.EntityRegion, AttributeName: "name", AttributeValue: name},
			{Group: group, Kind: regionSeedKind, AttributeName: "path", AttributeValue: full},
		} {
			if err := a.Store.PutConfigEntity(ctx, e); err != nil {
				return false, fmt.Errorf("member %s: publish region %s: %w", mc.Name, path, err)
			}
		}
		live = true
	}
	return live, nil
}

func (a *App) hasEntity(ctx context.Context, group, kind, value string) (bool, error) {
	entities, err := a.Store.ConfigEntities(ctx, group, kind)
	if err != nil {
		return false, fmt.Errorf("load %s entities of %s: %w", kind, group, err)
	}
	for _, e := range entities {
		if e.AttributeValue == value {
			return true, nil
		}
	}
	return false, nil
}

func groupsOrDefault(groups []string) []string {
	if len(groups) == 0 {
		return []string{storage.DefaultGroup}
	}
	return groups
}

func (a *App) newWebAdapter() *web.Adapter {
	cfg := a.Config.Web
	tokens := make([]web.TokenEntry, 0, len(cfg.Auth.Tokens))
	for _, token := range cfg.Auth.Tokens {
		tokens = append(tokens, web.TokenEntry{
			ID:          token.ID,
			TokenSHA256: token.TokenSHA256,
			Subject:     token.Subject,
			Roles:       token.Roles,
			Enabled:     token.Enabled,
		})
	}
	return web.NewAdapter(a.Service(web.Source), a.Store, a.Logger, web.Config{
		ListenAddr:               cfg.ListenAddr,
		ReadTimeout:              time.Duration(cfg.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:             time.Duration(cfg.WriteTimeoutMS) * time.Millisecond,
		RequestTimeout:           time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		ShutdownTimeout:          time.Duration(cfg.ShutdownTimeoutS) * time.Second,
		MaxRequestBody:           cfg.MaxBodyBytes,
		AllowLegacySubjectHeader: cfg.Auth.AllowLegacySubjectHeader,
		Tokens:                   tokens,
		CORSAllowedOrigins:       cfg.CORS.AllowedOrigins,
		CORSAllowedMethods:       cfg.CORS.AllowedMethods,
		CORSAllowedHeaders:       cfg.CORS.AllowedHeaders,
	})
}

// Service возвращает общий пайплайн команд для источника.
func (a *App) Service(source string) *common.Service {
	return &common.Service{
		Source:      source,
		Registry:    a.Registry,
		Authorizer:  a.Authorizer,
		RateLimiter: a.Limiter,
		AuditSink:   a.Store,
	}
}

func (a *App) onFatal(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Scheduler собирает периодические задачи: снимки участников, очистку
// limiter и удаление устаревших записей.
func (a *App) Scheduler() *core.Scheduler {
	interval := time.Duration(a.Config.Scheduler.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	sched := core.NewScheduler(interval, a.Logger)

	sched.Add("member_snapshots", func(jobCtx context.Context) error {
		runCtx, cancel := context.WithTimeout(jobCtx, 3*time.Second)
		defer cancel()

		var errs []error
		for _, mb := range a.Cluster.Members() {
			status, err := a.members.Snapshot(runCtx, mb)
			if err != nil {
				errs = append(errs, fmt.Errorf("snapshot %s: %w", mb.Identity().DisplayID(), err))
				continue
			}
			payload, err := sqlite.MarshalPayload(status)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := a.Store.SaveMetric(jobCtx, storage.MetricRecord{Module: mb.Identity().DisplayID(), Payload: payload}); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	sched.Add("limiter_sweep", func(jobCtx context.Context) error {
		a.Limiter.Sweep(time.Now())
		return nil
	})
	if days := a.Config.SQLite.RetentionDays; days > 0 {
		sched.Add("retention_prune", func(jobCtx context.Context) error {
			n, err := a.Store.Prune(jobCtx, time.Now().Add(-time.Duration(days)*24*time.Hour))
			if err != nil {
				return err
			}
			if n > 0 {
				a.Logger.Info("pruned stale rows", "rows", n)
			}
			return nil
		})
	}
	return sched
}

// Serve запускает транспорты и планировщик до отмены контекста
// или фатального сбоя процесса.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = a.Transports.StopAll(stopCtx)
	}()

	sched := a.Scheduler()
	sched.RunOnce(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Start(ctx)
	}()

	var fatalErr error
	select {
	case <-ctx.Done():
	case fatalErr = <-a.fatal:
		a.Logger.Error("shutting down after process failure", "err", fatalErr)
	}
	cancel()
	<-done
	if fatalErr != nil {
		return fatalErr
	}
	return ctx.Err()
}
