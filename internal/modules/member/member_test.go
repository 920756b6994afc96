package member

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gridadmin/internal/cache"
	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
)

func fakeSampler(ctx context.Context) (HostStats, error) {
	return HostStats{Hostname: "node-a", MemTotal: 1024}, nil
}

func newModule(t *testing.T, sampler HostSampler) *Module {
	t.Helper()
	c := cluster.New(cluster.Config{})
	local := cache.NewLocal(cache.Member{ID: "s1-id", Name: "server1"})
	_, err := local.CreateRegion("/orders")
	require.NoError(t, err)
	_, err = local.RegisterDurableClient("client1", map[string]int{"cq1": 1})
	require.NoError(t, err)
	_, err = c.Join(context.Background(), cluster.MemberConfig{Name: "server1", ID: "s1-id", Groups: []string{"g1"}, Cache: local})
	require.NoError(t, err)
	_, err = c.Join(context.Background(), cluster.MemberConfig{Name: "server2", ID: "s2-id", Groups: []string{"g2"}, Cache: cache.NewLocal(cache.Member{ID: "s2-id", Name: "server2"})})
	require.NoError(t, err)
	return New(c, sampler)
}

func run(t *testing.T, m *Module, line string) (core.Response, error) {
	t.Helper()
	cmd, err := command.Parse(line)
	require.NoError(t, err)
	return m.Execute(context.Background(), cmd)
}

func TestListMembers(t *testing.T) {
	m := newModule(t, fakeSampler)
	resp, err := run(t, m, "list members")
	require.NoError(t, err)
	require.Len(t, resp.Data.([]Summary), 2)

	resp, err = run(t, m, "list members --group=g2")
	require.NoError(t, err)
	require.Equal(t, []Summary{{ID: "s2-id", Name: "server2", Groups: []string{"g2"}, Available: true}}, resp.Data)

	resp, err = run(t, m, "list members --group=none")
	require.NoError(t, err)
	require.Equal(t, "no_members", resp.ErrorCode)
}

func TestDescribeMember(t *testing.T) {
	m := newModule(t, fakeSampler)
	resp, err := run(t, m, "describe member --name=s1-id")
	require.NoError(t, err)
	st := resp.Data.(Status)
	require.Equal(t, "server1", st.Name)
	require.Equal(t, []string{"/orders"}, st.Regions)
	require.Equal(t, []string{"client1"}, st.DurableClients)
	require.Equal(t, "node-a", st.Host.Hostname)

	resp, err = run(t, m, "describe member --name=ghost")
	require.NoError(t, err)
	require.Equal(t, "member_not_found", resp.ErrorCode)
}

func TestDescribeMemberSamplerFailure(t *testing.T) {
	m := newModule(t, func(ctx context.Context) (HostStats, error) { return HostStats{}, errors.New("no /proc") })
	resp, err := run(t, m, "describe member --name=server1")
	require.Error(t, err)
	require.Equal(t, "host_info_failed", resp.ErrorCode)
}

func TestUnknownCommand(t *testing.T) {
	m := newModule(t, fakeSampler)
	_, err := m.Execute(context.Background(), command.Command{Keyword: "unknown"})
	require.Error(t, err)
}
