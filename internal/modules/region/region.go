package region

import (
	"context"
	"fmt"
	"log/slog"

	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/function"
	"gridadmin/internal/functions"
	"gridadmin/internal/storage"
)

// Module обслуживает `destroy region` и синхронизирует конфигурацию кластера.
type Module struct {
	cluster *cluster.Cluster
	config  storage.ConfigStore
	logger  *slog.Logger
}

// New создает модуль; config может быть nil, тогда конфигурация не ведется.
func New(c *cluster.Cluster, config storage.ConfigStore, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{cluster: c, config: config, logger: logger}
}

func (m *Module) Name() string                   { return "region" }
func (m *Module) Commands() []string             { return []string{command.DestroyRegion} }
func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd command.Command) (core.Response, error) {
	if cmd.Keyword != command.DestroyRegion {
		return core.Failed("unknown_command", ""), fmt.Errorf("command %s not supported", cmd.Keyword)
	}
	path, err := cmd.Require(command.OptionName)
	if err != nil {
		return core.Failed("invalid_arguments", "region path is required"), fmt.Errorf("destroy region: %w", err)
	}
	members, denied := core.Targets(m.cluster, cmd)
	if denied != nil {
		return *denied, nil
	}
	exec, err := m.cluster.Execute(ctx, functions.RegionDestroyID, path, members)
	if err != nil {
		return core.Failed("dispatch_failed", err.Error()), fmt.Errorf("destroy region %s: %w", path, err)
	}

	resp := core.Summarize(exec)
	if resp.Status != core.StatusOK {
		if resp.ErrorCode == string(function.CodeNotFound) {
			resp.ErrorCode = "region_not_found"
			resp.Message = fmt.Sprintf("Could not find a Region with Region path %q in this cluster.", path)
		}
		return resp, nil
	}

	resp.Message = fmt.Sprintf("%q destroyed successfully.", path)
	m.applyConfig(ctx, exec.Results, cmd.Values(command.OptionGroup))
	return resp, nil
}

// applyConfig удаляет из конфигурации каждую уникальную сущность успешных конвертов.
func (m *Module) applyConfig(ctx context.Context, results []function.Result, groups []string) {
	if m.config == nil {
		return
	}
	if len(groups) == 0 {
		groups = []string{storage.DefaultGroup}
	}
	seen := make(map[function.ConfigEntity]struct{})
	for _, r := range results {
		entity, ok := r.Entity()
		if !ok || !r.IsSuccessful() {
			continue
		}
		if _, dup := seen[entity]; dup {
			continue
		}
		seen[entity] = struct{}{}
		for _, g := range groups {
			change := storage.ConfigChange{Op: storage.ConfigDelete, Entity: storage.ConfigEntity{
				Group:          g,
				Kind:           entity.Kind,
				AttributeName:  entity.AttributeName,
				AttributeValue: entity.AttributeValue,
			}}
			if err := m.config.ApplyConfigChange(ctx, change); err != nil {
				m.logger.Warn("cluster configuration not updated", "group", g, "entity", entity.AttributeValue, "err", err)
			}
		}
	}
}
