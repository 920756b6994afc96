package bridge

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gridadmin/internal/command"
)

type recordingProcessor struct {
	lines []string
}

func (p *recordingProcessor) ProcessCommand(ctx context.Context, line string) (string, error) {
	p.lines = append(p.lines, line)
	return `{"status":"ok"}`, nil
}

func TestParseRequestDecodesAndRoundTrips(t *testing.T) {
	q := url.Values{"group": {"g1", "g2"}}
	req, err := ParseRequest("client%231", "", q)
	require.NoError(t, err)
	require.Equal(t, "client#1", req.ClientID)
	require.Nil(t, req.Filter.Member)

	cmd, err := command.Parse(ListDurableCQsCommand(req))
	require.NoError(t, err)
	id, _ := cmd.Value(command.OptionDurableClientID)
	require.Equal(t, "client#1", id)
	require.Nil(t, cmd.Lookup(command.OptionMember))
	require.Equal(t, []string{"g1", "g2"}, cmd.Values(command.OptionGroup))
}

func TestParseFilterMemberPresence(t *testing.T) {
	require.Nil(t, ParseFilter(url.Values{}).Member)

	f := ParseFilter(url.Values{"member": {""}})
	require.NotNil(t, f.Member)
	require.Equal(t, "", *f.Member)

	f = ParseFilter(url.Values{"group": {"g1,g2", "g3"}})
	require.Equal(t, []string{"g1", "g2", "g3"}, f.Groups)
}

func TestOmittedMemberHasNoToken(t *testing.T) {
	line := ListDurableCQsCommand(Request{ClientID: "c1"})
	require.NotContains(t, line, "--member")
	require.Equal(t, "list durable-cqs --durable-client-id=c1", line)

	member := ""
	line = ListDurableCQsCommand(Request{ClientID: "c1", Filter: Filter{Member: &member}})
	require.Contains(t, line, `--member=""`)
}

func TestCountEventsVariantsDifferByQualifierOnly(t *testing.T) {
	member := "server1"
	f := Filter{Member: &member, Groups: []string{"g1"}}
	all := CountDurableCQEventsCommand(Request{ClientID: "c1", Filter: f})
	one := CountDurableCQEventsCommand(Request{ClientID: "c1", CQName: "cq1", Filter: f})

	require.Equal(t, "show subscription-queue-size --durable-client-id=c1 --member=server1 --group=g1", all)
	require.Equal(t, strings.Replace(all, " --member", " --durable-cq-name=cq1 --member", 1), one)
}

func TestBridgeHandsOffVerbatim(t *testing.T) {
	p := &recordingProcessor{}
	b := New(p)
	ctx := context.Background()

	_, err := b.CloseDurableClient(ctx, Request{ClientID: "c 1"})
	require.NoError(t, err)
	_, err = b.CloseDurableCQ(ctx, Request{ClientID: "c1", CQName: "cq1"})
	require.NoError(t, err)
	_, err = b.CloseDurableCQ(ctx, Request{ClientID: "c1"})
	require.Error(t, err)
	_, err = b.DestroyRegion(ctx, "/orders", Filter{})
	require.NoError(t, err)

	require.Equal(t, []string{
		`close durable-client --durable-client-id="c 1"`,
		"close durable-cq --durable-client-id=c1 --durable-cq-name=cq1",
		"destroy region --name=/orders",
	}, p.lines)
}

func TestParseRequestRejectsBadEscape(t *testing.T) {
	_, err := ParseRequest("bad%zz", "", nil)
	require.Error(t, err)
	_, err = ParseRequest("", "", nil)
	require.ErrorIs(t, err, errEmptyIdentifier)
}

func TestProcessorFunc(t *testing.T) {
	var got string
	b := New(ProcessorFunc(func(ctx context.Context, line string) (string, error) {
		got = line
		return "", nil
	}))
	_, err := b.ListDeployed(context.Background(), Filter{Groups: []string{"g1"}})
	require.NoError(t, err)
	require.Equal(t, "list deployed --group=g1", got)
}

func TestParseRegionPath(t *testing.T) {
	path, err := ParseRegionPath("parent/child%20one")
	require.NoError(t, err)
	require.Equal(t, "/parent/child one", path)

	_, err = ParseRegionPath("")
	require.ErrorIs(t, err, errEmptyIdentifier)
}
