package deployed

import (
	"context"
	"fmt"

	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/functions"
)

const noJarsMessage = "No JAR Files Found"

// Row — один развернутый jar на участнике.
type Row struct {
	Member string `json:"member"`
	JAR    string `json:"jar"`
	Path   string `json:"path"`
	Error  string `json:"error,omitempty"`
}

// Module обслуживает `list deployed`.
type Module struct {
	cluster *cluster.Cluster
}

// New создает модуль поверх кластера.
func New(c *cluster.Cluster) *Module {
	return &Module{cluster: c}
}

func (m *Module) Name() string                   { return "deployed" }
func (m *Module) Commands() []string             { return []string{command.ListDeployed} }
func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd command.Command) (core.Response, error) {
	if cmd.Keyword != command.ListDeployed {
		return core.Failed("unknown_command", ""), fmt.Errorf("command %s not supported", cmd.Keyword)
	}
	members, denied := core.Targets(m.cluster, cmd)
	if denied != nil {
		return *denied, nil
	}
	exec, err := m.cluster.Execute(ctx, functions.ListDeployedID, nil, members)
	if err != nil {
		return core.Failed("dispatch_failed", err.Error()), fmt.Errorf("list deployed: %w", err)
	}

	var rows []Row
	failed := 0
	for _, r := range exec.Results {
		if !r.IsSuccessful() {
			failed++
			msg := r.ErrorMessage()
			if msg == "" {
				msg = string(r.Code())
			}
			rows = append(rows, Row{Member: r.MemberID(), Error: msg})
			continue
		}
		for _, pair := range r.Pairs() {
			rows = append(rows, Row{Member: r.MemberID(), JAR: pair[0], Path: pair[1]})
		}
	}
	for _, id := range exec.Failed {
		failed++
		rows = append(rows, Row{Member: id, Error: "member stopped after a process failure"})
	}

	if len(rows) == 0 {
		return core.Response{Status: core.StatusOK, Message: noJarsMessage}, nil
	}
	resp := core.Response{Status: core.StatusOK, Data: rows}
	if failed == len(exec.Results)+len(exec.Failed) {
		resp.Status = core.StatusError
		resp.ErrorCode = "list_failed"
	}
	return resp, nil
}
