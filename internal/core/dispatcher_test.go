package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gridadmin/internal/command"
	"gridadmin/internal/function"
)

type fakeProvider struct {
	name     string
	commands []string
	execErr  error
	last     command.Command
}

func (f *fakeProvider) Name() string                   { return f.name }
func (f *fakeProvider) Commands() []string             { return f.commands }
func (f *fakeProvider) Init(ctx context.Context) error { return nil }
func (f *fakeProvider) Execute(ctx context.Context, cmd command.Command) (Response, error) {
	f.last = cmd
	if f.execErr != nil {
		return Response{Status: StatusError}, f.execErr
	}
	return Response{Status: StatusOK, Data: cmd.Keyword}, nil
}

func TestRegisterAndProcess(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	prov := &fakeProvider{name: "deployed", commands: []string{command.ListDeployed}}
	if err := r.Register(ctx, prov); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := r.Process(ctx, "list deployed --group=g1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Status != StatusOK || resp.Data != command.ListDeployed {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if got := prov.last.Values(command.OptionGroup); len(got) != 1 || got[0] != "g1" {
		t.Fatalf("options not passed through: %#v", prov.last)
	}
	if mod, ok := r.Module(command.ListDeployed); !ok || mod != "deployed" {
		t.Fatalf("unexpected module lookup: %q %v", mod, ok)
	}
}

func TestDuplicateProviderAndKeyword(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	prov := &fakeProvider{name: "dup", commands: []string{"list deployed"}}
	if err := r.Register(ctx, prov); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(ctx, prov); !errors.Is(err, errProviderExists) {
		t.Fatalf("expected errProviderExists, got %v", err)
	}
	other := &fakeProvider{name: "other", commands: []string{"list deployed"}}
	if err := r.Register(ctx, other); !errors.Is(err, errCommandExists) {
		t.Fatalf("expected errCommandExists, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	r := NewRegistry()
	resp, err := r.Process(context.Background(), "list nothing")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if resp.ErrorCode != "command_not_found" {
		t.Fatalf("unexpected error code: %q", resp.ErrorCode)
	}
}

func TestProcessCommandRendersJSON(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	_ = r.Register(ctx, &fakeProvider{name: "deployed", commands: []string{command.ListDeployed}})

	out, err := r.ProcessCommand(ctx, "list deployed")
	if err != nil {
		t.Fatalf("process command: %v", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Status != StatusOK {
		t.Fatalf("unexpected status: %#v", resp)
	}

	out, err = r.ProcessCommand(ctx, `list deployed --group="unterminated`)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil || resp.ErrorCode != "bad_command" {
		t.Fatalf("unexpected rendered error %q: %v", out, err)
	}
}

func TestRowsKeepOutcomeDetails(t *testing.T) {
	rows := Rows([]function.Result{
		function.SuccessMessage("s1", "done"),
		function.DomainFailure("s2", function.CodeNotFound, "missing"),
		function.FatalFailure("s3", errors.New("boom")),
	})
	if rows[0].Status != StatusOK || rows[0].Message != "done" {
		t.Fatalf("unexpected success row: %#v", rows[0])
	}
	if rows[1].Status != StatusError || rows[1].Code != "not_found" || rows[1].Message != "missing" {
		t.Fatalf("unexpected domain row: %#v", rows[1])
	}
	if rows[2].Status != StatusError || rows[2].Detail != "boom" {
		t.Fatalf("unexpected fatal row: %#v", rows[2])
	}
	if !AnySuccess([]function.Result{function.Success("s1")}) || AnySuccess(nil) {
		t.Fatalf("unexpected AnySuccess")
	}
}
