package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"gridadmin/internal/cache"
	"gridadmin/internal/cluster"
	"gridadmin/internal/core"
	"gridadmin/internal/function"
	"gridadmin/internal/functions"
	"gridadmin/internal/modules/durable"
	"gridadmin/internal/modules/region"
	"gridadmin/internal/storage"
	"gridadmin/internal/transports/common"
	"gridadmin/pkg/logger"
)

type memAudit struct {
	events []storage.AuditEvent
}

func (m *memAudit) Write(ctx context.Context, ev storage.AuditEvent) error {
	m.events = append(m.events, ev)
	return nil
}

type nopConfig struct{}

func (nopConfig) PutConfigEntity(ctx context.Context, e storage.ConfigEntity) error    { return nil }
func (nopConfig) ApplyConfigChange(ctx context.Context, ch storage.ConfigChange) error { return nil }
func (nopConfig) ConfigEntities(ctx context.Context, group, kind string) ([]storage.ConfigEntity, error) {
	return nil, nil
}

type fakeRuntime struct {
	registry *core.Registry
	audit    *memAudit
	closed   int
}

func (r *fakeRuntime) Service(source string) *common.Service {
	return &common.Service{
		Source:     source,
		Registry:   r.registry,
		Authorizer: core.NewAllowlistAuthorizer(map[string][]string{Source: {"operator"}}),
		AuditSink:  r.audit,
	}
}
func (r *fakeRuntime) Serve(ctx context.Context) error { return nil }
func (r *fakeRuntime) Close() error {
	r.closed++
	return nil
}

func newRuntime(t *testing.T) *fakeRuntime {
	t.Helper()
	ctx := context.Background()
	fns := function.NewRegistry()
	if err := fns.Register(functions.All()...); err != nil {
		t.Fatalf("register functions: %v", err)
	}
	c := cluster.New(cluster.Config{Functions: fns})
	local := cache.NewLocal(cache.Member{ID: "s1-id", Name: "server1"})
	if _, err := local.RegisterDurableClient("client#1", map[string]int{"cq1": 2}); err != nil {
		t.Fatalf("register client: %v", err)
	}
	if _, err := local.CreateRegion("/orders"); err != nil {
		t.Fatalf("create region: %v", err)
	}
	if _, err := c.Join(ctx, cluster.MemberConfig{Name: "server1", ID: "s1-id", Groups: []string{"g1"}, Cache: local}); err != nil {
		t.Fatalf("join: %v", err)
	}
	registry := core.NewRegistry()
	for _, p := range []core.CommandProvider{durable.New(c), region.New(c, nopConfig{}, nil)} {
		if err := registry.Register(ctx, p); err != nil {
			t.Fatalf("register %s: %v", p.Name(), err)
		}
	}
	return &fakeRuntime{registry: registry, audit: &memAudit{}}
}

func run(t *testing.T, rt *fakeRuntime, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := New("v1.2.3", func(ctx context.Context, configPath string, logOut io.Writer) (Runtime, error) { return rt, nil })
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, newRuntime(t), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "v1.2.3" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestListDurableCQsPrintsIndentedJSON(t *testing.T) {
	rt := newRuntime(t)
	out, err := run(t, rt, "list", "durable-cqs", "--durable-client-id", "client#1", "--group", "g1")
	if err != nil {
		t.Fatalf("list durable-cqs: %v", err)
	}
	if !strings.Contains(out, "\n  \"status\": \"ok\"") {
		t.Fatalf("expected indented ok response, got %s", out)
	}
	var resp struct {
		Data []core.MemberRow `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Values[0] != "cq1" {
		t.Fatalf("unexpected rows: %+v", resp.Data)
	}
	if rt.closed != 1 {
		t.Fatalf("runtime must be closed once, got %d", rt.closed)
	}
	if len(rt.audit.events) != 1 || rt.audit.events[0].Source != Source {
		t.Fatalf("expected one cli audit event, got %+v", rt.audit.events)
	}
}

func TestDomainFailureReturnsError(t *testing.T) {
	out, err := run(t, newRuntime(t), "close", "durable-client", "--durable-client-id", "nobody")
	if !errors.Is(err, errCommandFailed) {
		t.Fatalf("expected errCommandFailed, got %v", err)
	}
	if !strings.Contains(out, "not_found") {
		t.Fatalf("expected not_found in output, got %s", out)
	}
}

func TestExecRawLine(t *testing.T) {
	out, err := run(t, newRuntime(t), "exec", "destroy", "region", "--name=/orders")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(out, `destroyed successfully`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestAccessDeniedForOtherSubject(t *testing.T) {
	_, err := run(t, newRuntime(t), "--as", "intruder", "destroy", "region", "--name", "orders")
	if !errors.Is(err, common.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestRequiredFlag(t *testing.T) {
	if _, err := run(t, newRuntime(t), "close", "durable-cq", "--durable-client-id", "client#1"); err == nil {
		t.Fatal("expected error for missing --durable-cq-name")
	}
}

func TestStdoutCarriesOnlyResponse(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	rt := newRuntime(t)
	var stdout, stderr bytes.Buffer
	root := New("v1.2.3", func(ctx context.Context, configPath string, logOut io.Writer) (Runtime, error) {
		logger.NewWriter(logOut, "info").Info("member joined", "member", "server1")
		return rt, nil
	})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"list", "durable-cqs", "--durable-client-id", "client#1"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("list durable-cqs: %v", err)
	}

	dec := json.NewDecoder(&stdout)
	var resp core.Response
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode stdout: %v", err)
	}
	if resp.Status != core.StatusOK {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Fatalf("expected a single JSON document on stdout, got trailing %s (err %v)", extra, err)
	}
	if !strings.Contains(stderr.String(), `"msg":"member joined"`) {
		t.Fatalf("log record missing from stderr: %q", stderr.String())
	}
}
