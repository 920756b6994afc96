package durable

import (
	"context"
	"fmt"

	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/functions"
)

// Module обслуживает команды durable-клиентов и их CQ.
type Module struct {
	cluster *cluster.Cluster
}

// New создает модуль поверх кластера.
func New(c *cluster.Cluster) *Module {
	return &Module{cluster: c}
}

func (m *Module) Name() string { return "durable" }

func (m *Module) Commands() []string {
	return []string{
		command.ListDurableCQs,
		command.CountDurableCQEvents,
		command.CloseDurableClient,
		command.CloseDurableCQ,
	}
}

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd command.Command) (core.Response, error) {
	var (
		functionID string
		needCQ     bool
	)
	switch cmd.Keyword {
	case command.ListDurableCQs:
		functionID = functions.ListDurableCQsID
	case command.CountDurableCQEvents:
		functionID = functions.CountDurableCQEventsID
	case command.CloseDurableClient:
		functionID = functions.CloseDurableClientID
	case command.CloseDurableCQ:
		functionID, needCQ = functions.CloseDurableCQID, true
	default:
		return core.Failed("unknown_command", ""), fmt.Errorf("command %s not supported", cmd.Keyword)
	}

	args, err := parseArgs(cmd, needCQ)
	if err != nil {
		return core.Failed("invalid_arguments", err.Error()), fmt.Errorf("%s: %w", cmd.Keyword, err)
	}
	members, denied := core.Targets(m.cluster, cmd)
	if denied != nil {
		return *denied, nil
	}
	exec, err := m.cluster.Execute(ctx, functionID, args, members)
	if err != nil {
		return core.Failed("dispatch_failed", err.Error()), fmt.Errorf("%s: %w", cmd.Keyword, err)
	}
	return core.Summarize(exec), nil
}

func parseArgs(cmd command.Command, needCQ bool) (functions.DurableCQArgs, error) {
	clientID, err := cmd.Require(command.OptionDurableClientID)
	if err != nil {
		return functions.DurableCQArgs{}, err
	}
	args := functions.DurableCQArgs{ClientID: clientID}
	if needCQ {
		if args.CQName, err = cmd.Require(command.OptionDurableCQName); err != nil {
			return functions.DurableCQArgs{}, err
		}
		return args, nil
	}
	args.CQName, _ = cmd.Value(command.OptionDurableCQName)
	return args, nil
}
