package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
)

// Summary — краткое описание участника для `list members`.
type Summary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Groups    []string `json:"groups,omitempty"`
	Available bool     `json:"available"`
}

// HostStats — метрики узла, на котором работают участники.
type HostStats struct {
	Hostname   string  `json:"hostname"`
	Platform   string  `json:"platform"`
	Kernel     string  `json:"kernel"`
	UptimeSec  uint64  `json:"uptime_sec"`
	BootTime   string  `json:"boot_time"`
	MemTotal   uint64  `json:"mem_total"`
	MemUsed    uint64  `json:"mem_used"`
	MemUsedPct float64 `json:"mem_used_pct"`
	Load1      float64 `json:"load1"`
	Load5      float64 `json:"load5"`
	Load15     float64 `json:"load15"`
}

// Status — подробное состояние участника для `describe member`.
type Status struct {
	Summary
	CacheClosed    bool      `json:"cache_closed"`
	Regions        []string  `json:"regions"`
	DurableClients []string  `json:"durable_clients"`
	Host           HostStats `json:"host"`
}

// HostSampler снимает метрики узла.
type HostSampler func(ctx context.Context) (HostStats, error)

// Module обслуживает `list members` и `describe member`.
type Module struct {
	cluster *cluster.Cluster
	sampler HostSampler
}

// New создает модуль; sampler == nil означает метрики через gopsutil.
func New(c *cluster.Cluster, sampler HostSampler) *Module {
	if sampler == nil {
		sampler = SampleHost
	}
	return &Module{cluster: c, sampler: sampler}
}

func (m *Module) Name() string { return "member" }

func (m *Module) Commands() []string {
	return []string{command.ListMembers, command.DescribeMember}
}

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd command.Command) (core.Response, error) {
	switch cmd.Keyword {
	case command.ListMembers:
		return m.list(cmd)
	case command.DescribeMember:
		return m.describe(ctx, cmd)
	default:
		return core.Failed("unknown_command", ""), fmt.Errorf("command %s not supported", cmd.Keyword)
	}
}

func (m *Module) list(cmd command.Command) (core.Response, error) {
	groups := cmd.Values(command.OptionGroup)
	var out []Summary
	for _, mb := range m.cluster.Members() {
		if len(groups) > 0 && !mb.InAnyGroup(groups) {
			continue
		}
		out = append(out, summarize(mb))
	}
	if len(out) == 0 {
		return core.Failed("no_members", "No Members Found"), nil
	}
	return core.Response{Status: core.StatusOK, Data: out}, nil
}

func (m *Module) describe(ctx context.Context, cmd command.Command) (core.Response, error) {
	name, err := cmd.Require(command.OptionName)
	if err != nil {
		return core.Failed("invalid_arguments", "member name is required"), fmt.Errorf("describe member: %w", err)
	}
	mb, err := m.cluster.Member(name)
	if err != nil {
		if errors.Is(err, cluster.ErrUnknownMember) {
			return core.Failed("member_not_found", fmt.Sprintf("Member %q not found", name)), nil
		}
		return core.Failed("describe_failed", err.Error()), err
	}
	st, err := m.Snapshot(ctx, mb)
	if err != nil {
		return core.Failed("host_info_failed", err.Error()), err
	}
	return core.Response{Status: core.StatusOK, Data: st}, nil
}

// Snapshot собирает состояние участника.
func (m *Module) Snapshot(ctx context.Context, mb *cluster.Member) (Status, error) {
	hs, err := m.sampler(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Summary: summarize(mb), Host: hs}
	c := mb.Cache()
	st.CacheClosed = c.IsClosed()
	if !st.CacheClosed {
		st.Regions = c.Regions()
		st.DurableClients = c.DurableClients()
	}
	return st, nil
}

func summarize(mb *cluster.Member) Summary {
	id := mb.Identity()
	return Summary{ID: id.ID, Name: id.Name, Groups: mb.Groups(), Available: mb.Available()}
}

// SampleHost снимает метрики узла через gopsutil.
func SampleHost(ctx context.Context) (HostStats, error) {
	hInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostStats{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostStats{}, fmt.Errorf("memory info: %w", err)
	}
	ld, err := load.AvgWithContext(ctx)
	if err != nil {
		return HostStats{}, fmt.Errorf("load info: %w", err)
	}
	return HostStats{
		Hostname:   hInfo.Hostname,
		Platform:   hInfo.Platform + " " + hInfo.PlatformVersion,
		Kernel:     hInfo.KernelVersion,
		UptimeSec:  hInfo.Uptime,
		BootTime:   time.Unix(int64(hInfo.BootTime), 0).UTC().Format(time.RFC3339),
		MemTotal:   vm.Total,
		MemUsed:    vm.Used,
		MemUsedPct: vm.UsedPercent,
		Load1:      ld.Load1,
		Load5:      ld.Load5,
		Load15:     ld.Load15,
	}, nil
}
