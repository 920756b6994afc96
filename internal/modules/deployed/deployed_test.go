package deployed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gridadmin/internal/cache"
	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/deploy"
	"gridadmin/internal/function"
	"gridadmin/internal/functions"
)

func newCluster(t *testing.T, dirs map[string]string) (*cluster.Cluster, map[string]*cache.Local) {
	t.Helper()
	reg := function.NewRegistry()
	require.NoError(t, reg.Register(functions.All()...))
	c := cluster.New(cluster.Config{Functions: reg})
	caches := make(map[string]*cache.Local)
	for _, name := range []string{"server1", "server2"} {
		local := cache.NewLocal(cache.Member{ID: name + "-id", Name: name})
		caches[name] = local
		_, err := c.Join(context.Background(), cluster.MemberConfig{
			Name:     name,
			ID:       name + "-id",
			Groups:   []string{"g-" + name},
			Cache:    local,
			Deployer: deploy.Dir{Path: dirs[name]},
		})
		require.NoError(t, err)
	}
	return c, caches
}

func execute(t *testing.T, m *Module, line string) core.Response {
	t.Helper()
	cmd, err := command.Parse(line)
	require.NoError(t, err)
	resp, err := m.Execute(context.Background(), cmd)
	require.NoError(t, err)
	return resp
}

func TestListDeployedRows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.v1.jar"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.v2.jar"), nil, 0o600))

	c, _ := newCluster(t, map[string]string{"server1": dir})
	resp := execute(t, New(c), "list deployed")
	require.Equal(t, core.StatusOK, resp.Status)

	rows := resp.Data.([]Row)
	require.Len(t, rows, 1)
	require.Equal(t, "server1", rows[0].Member)
	require.Equal(t, "app.jar", rows[0].JAR)
	require.Equal(t, "app.v2.jar", filepath.Base(rows[0].Path))
}

func TestListDeployedNothingFound(t *testing.T) {
	c, _ := newCluster(t, nil)
	resp := execute(t, New(c), "list deployed")
	require.Equal(t, core.StatusOK, resp.Status)
	require.Equal(t, noJarsMessage, resp.Message)
	require.Nil(t, resp.Data)
}

func TestListDeployedClosedCacheHasEmptyPayload(t *testing.T) {
	c, caches := newCluster(t, nil)
	caches["server2"].Close()

	resp := execute(t, New(c), "list deployed --group=g-server2")
	require.Equal(t, core.StatusError, resp.Status)
	rows := resp.Data.([]Row)
	require.Len(t, rows, 1)
	require.Equal(t, Row{Member: "server2", Error: string(function.CodeCacheClosed)}, rows[0])
}

func TestListDeployedNoMembers(t *testing.T) {
	c, _ := newCluster(t, nil)
	resp := execute(t, New(c), "list deployed --group=missing")
	require.Equal(t, "no_members", resp.ErrorCode)
}
