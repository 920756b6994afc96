package function

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gridadmin/internal/cache"
	"gridadmin/internal/failure"
)

func newTestContext(t *testing.T) (*Context, *Collector, *failure.Handler) {
	t.Helper()
	col := NewCollector()
	h := failure.NewHandler(nil, nil)
	ctx := NewContext(ContextConfig{
		FunctionID: "test",
		Member:     cache.Member{ID: "host(1)<v1>", Name: "server1"},
		Sender:     col,
		Failures:   h,
	})
	return ctx, col, h
}

func TestCompleteSendsExactlyOneResult(t *testing.T) {
	cases := []struct {
		name    string
		body    Body
		outcome Outcome
	}{
		{"success", func() (Result, error) { return Success("server1", "a", "b"), nil }, OutcomeSuccess},
		{"domain", func() (Result, error) { return Result{}, Domain(CodeNotFound, "missing") }, OutcomeDomainFailure},
		{"unexpected error", func() (Result, error) { return Result{}, errors.New("boom") }, OutcomeFatalFailure},
		{"non-fatal panic", func() (Result, error) { panic("nil map") }, OutcomeFatalFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, col, h := newTestContext(t)
			Complete(ctx, tc.body)

			results := col.Results()
			require.Len(t, results, 1)
			require.True(t, col.Terminated())
			require.Equal(t, tc.outcome, results[0].Outcome())
			require.Equal(t, "server1", results[0].MemberID())
			require.Zero(t, h.Count())
		})
	}
}

func TestCompleteDomainKeepsCode(t *testing.T) {
	ctx, col, _ := newTestContext(t)
	cause := errors.New("region has been destroyed")
	Complete(ctx, func() (Result, error) { return Result{}, DomainCause(CodeIllegalState, cause) })

	res := col.Results()[0]
	require.Equal(t, CodeIllegalState, res.Code())
	require.Equal(t, cause.Error(), res.Message())
}

func TestCompleteEscalatesFatalPanicOnce(t *testing.T) {
	ctx, col, h := newTestContext(t)
	fatal := failure.New("out of memory", nil)

	require.PanicsWithValue(t, fatal, func() {
		Complete(ctx, func() (Result, error) { panic(fatal) })
	})
	require.Equal(t, 1, h.Count())
	require.Empty(t, col.Results())
}

func TestCompleteEscalatesFatalErrorOnce(t *testing.T) {
	ctx, col, h := newTestContext(t)
	fatal := failure.New("stack exhausted", nil)

	require.Panics(t, func() {
		Complete(ctx, func() (Result, error) { return Result{}, fatal })
	})
	require.Equal(t, 1, h.Count())
	require.Empty(t, col.Results())
}

func TestCollectorWriteOnceTerminal(t *testing.T) {
	col := NewCollector()
	require.NoError(t, col.SendResult(Success("m", "1")))
	require.NoError(t, col.LastResult(Success("m", "2")))
	require.ErrorIs(t, col.LastResult(Success("m", "3")), ErrResultSent)
	require.ErrorIs(t, col.SendResult(Success("m", "4")), ErrResultSent)
	require.Len(t, col.Results(), 2)

	select {
	case <-col.Done():
	default:
		t.Fatal("expected done channel to be closed")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	fn := &stubFunction{id: "stub"}
	require.NoError(t, r.Register(fn))
	require.ErrorIs(t, r.Register(fn), ErrFunctionExists)

	got, err := r.Lookup("stub")
	require.NoError(t, err)
	require.Equal(t, fn, got)
	_, err = r.Lookup("missing")
	require.ErrorIs(t, err, ErrUnknownFunction)
	require.Equal(t, []string{"stub"}, r.IDs())
}

type stubFunction struct{ id string }

func (s *stubFunction) ID() string             { return s.id }
func (s *stubFunction) Execute(ctx *Context)   {}
func (s *stubFunction) HasResult() bool        { return true }
func (s *stubFunction) OptimizeForWrite() bool { return false }
func (s *stubFunction) IsHA() bool             { return false }
