package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalRegionLifecycle(t *testing.T) {
	c := NewLocal(Member{ID: "host(1)<v1>", Name: "server1"})
	_, err := c.CreateRegion("orders")
	require.NoError(t, err)
	_, err = c.CreateRegion("/orders/eu")
	require.NoError(t, err)
	require.Equal(t, []string{"/orders", "/orders/eu"}, c.Regions())

	r, err := c.Region("/orders")
	require.NoError(t, err)
	require.Equal(t, "orders", r.Name())
	require.NoError(t, r.DestroyRegion())
	require.Empty(t, c.Regions())

	require.ErrorIs(t, r.DestroyRegion(), ErrRegionDestroyed)
	_, err = c.Region("/orders")
	require.ErrorIs(t, err, ErrRegionNotFound)
}

func TestLocalClosedCache(t *testing.T) {
	c := NewLocal(Member{ID: "id"})
	c.Close()
	_, err := c.DistributedSystem()
	require.ErrorIs(t, err, ErrCacheClosed)
	_, err = c.Region("/a")
	require.ErrorIs(t, err, ErrCacheClosed)
	require.True(t, c.IsClosed())
}

func TestLocalDurableClient(t *testing.T) {
	c := NewLocal(Member{ID: "id"})
	_, err := c.RegisterDurableClient("client#1", map[string]int{"cq1": 3, "cq2": 4})
	require.NoError(t, err)

	cl, err := c.DurableClient("client#1")
	require.NoError(t, err)
	require.Equal(t, []string{"cq1", "cq2"}, cl.CQs())
	require.Equal(t, 7, cl.QueueSize())

	require.NoError(t, cl.CloseCQ("cq1"))
	require.ErrorIs(t, cl.CloseCQ("cq1"), ErrCQNotFound)
	require.NoError(t, cl.Close())
	require.ErrorIs(t, cl.Close(), ErrClientClosed)
	require.Empty(t, c.DurableClients())
}

func TestMemberDisplayID(t *testing.T) {
	require.Equal(t, "server1", Member{ID: "x", Name: "server1"}.DisplayID())
	require.Equal(t, "x", Member{ID: "x"}.DisplayID())
}
