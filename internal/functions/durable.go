package functions

import (
	"errors"
	"fmt"
	"strconv"

	"gridadmin/internal/cache"
	"gridadmin/internal/function"
)

const (
	ListDurableCQsID       = "list-durable-cqs"
	CountDurableCQEventsID = "get-subscription-queue-size"
	CloseDurableClientID   = "close-durable-client"
	CloseDurableCQID       = "close-durable-cq"
)

// DurableCQArgs адресует durable-клиента и, при необходимости, одну его CQ.
type DurableCQArgs struct {
	ClientID string
	CQName   string
}

func durableArgs(ctx *function.Context, needCQ bool) (DurableCQArgs, error) {
	var args DurableCQArgs
	switch v := ctx.Arguments().(type) {
	case DurableCQArgs:
		args = v
	case string:
		args.ClientID = v
	}
	if args.ClientID == "" {
		return args, function.Domain(function.CodeInvalidArguments, "durable client id is required")
	}
	if needCQ && args.CQName == "" {
		return args, function.Domain(function.CodeInvalidArguments, "durable cq name is required")
	}
	if ctx.Cache() == nil {
		return args, errors.New("member has no cache")
	}
	return args, nil
}

func classifyClientError(args DurableCQArgs, err error) error {
	switch {
	case errors.Is(err, cache.ErrClientNotFound):
		return function.Domain(function.CodeNotFound, "No client found with client-id : %s", args.ClientID)
	case errors.Is(err, cache.ErrCQNotFound):
		return function.Domain(function.CodeNotFound, "No durable cq found with name : %s for client-id : %s", args.CQName, args.ClientID)
	case errors.Is(err, cache.ErrClientClosed):
		return function.DomainCause(function.CodeIllegalState, err)
	case errors.Is(err, cache.ErrCacheClosed):
		return function.DomainCause(function.CodeCacheClosed, err)
	default:
		return err
	}
}

// ListDurableCQs возвращает имена CQ durable-клиента.
type ListDurableCQs struct{}

func (f *ListDurableCQs) ID() string             { return ListDurableCQsID }
func (f *ListDurableCQs) HasResult() bool        { return true }
func (f *ListDurableCQs) OptimizeForWrite() bool { return false }
func (f *ListDurableCQs) IsHA() bool             { return false }

func (f *ListDurableCQs) Execute(ctx *function.Context) {
	function.Complete(ctx, func() (function.Result, error) {
		args, err := durableArgs(ctx, false)
		if err != nil {
			return function.Result{}, err
		}
		client, err := ctx.Cache().DurableClient(args.ClientID)
		if err != nil {
			return function.Result{}, classifyClientError(args, err)
		}
		cqs := client.CQs()
		if len(cqs) == 0 {
			return function.Result{}, function.Domain(function.CodeNotFound, "No durable cqs found for durable-client-id : %q.", args.ClientID)
		}
		return function.Success(ctx.Member().DisplayID(), cqs...), nil
	})
}

// CountDurableCQEvents возвращает размер очереди подписки клиента или одной CQ.
type CountDurableCQEvents struct{}

func (f *CountDurableCQEvents) ID() string             { return CountDurableCQEventsID }
func (f *CountDurableCQEvents) HasResult() bool        { return true }
func (f *CountDurableCQEvents) OptimizeForWrite() bool { return false }
func (f *CountDurableCQEvents) IsHA() bool             { return false }

func (f *CountDurableCQEvents) Execute(ctx *function.Context) {
	function.Complete(ctx, func() (function.Result, error) {
		args, err := durableArgs(ctx, false)
		if err != nil {
			return function.Result{}, err
		}
		client, err := ctx.Cache().DurableClient(args.ClientID)
		if err != nil {
			return function.Result{}, classifyClientError(args, err)
		}
		name, size := args.ClientID, client.QueueSize()
		if args.CQName != "" {
			name = args.CQName
			if size, err = client.CQQueueSize(args.CQName); err != nil {
				return function.Result{}, classifyClientError(args, err)
			}
		}
		return function.Success(ctx.Member().DisplayID(), name, strconv.Itoa(size)), nil
	})
}

// CloseDurableClient закрывает прокси durable-клиента.
// Повторное закрытие классифицируется как illegal_state.
type CloseDurableClient struct{}

func (f *CloseDurableClient) ID() string             { return CloseDurableClientID }
func (f *CloseDurableClient) HasResult() bool        { return true }
func (f *CloseDurableClient) OptimizeForWrite() bool { return true }
func (f *CloseDurableClient) IsHA() bool             { return true }

func (f *CloseDurableClient) Execute(ctx *function.Context) {
	function.Complete(ctx, func() (function.Result, error) {
		args, err := durableArgs(ctx, false)
		if err != nil {
			return function.Result{}, err
		}
		client, err := ctx.Cache().DurableClient(args.ClientID)
		if err != nil {
			return function.Result{}, classifyClientError(args, err)
		}
		if err := client.Close(); err != nil {
			return function.Result{}, classifyClientError(args, err)
		}
		msg := fmt.Sprintf("Closed the durable client : %q.", args.ClientID)
		return function.SuccessMessage(ctx.Member().DisplayID(), msg), nil
	})
}

// CloseDurableCQ закрывает одну CQ durable-клиента.
type CloseDurableCQ struct{}

func (f *CloseDurableCQ) ID() string             { return CloseDurableCQID }
func (f *CloseDurableCQ) HasResult() bool        { return true }
func (f *CloseDurableCQ) OptimizeForWrite() bool { return true }
func (f *CloseDurableCQ) IsHA() bool             { return true }

func (f *CloseDurableCQ) Execute(ctx *function.Context) {
	function.Complete(ctx, func() (function.Result, error) {
		args, err := durableArgs(ctx, true)
		if err != nil {
			return function.Result{}, err
		}
		client, err := ctx.Cache().DurableClient(args.ClientID)
		if err != nil {
			return function.Result{}, classifyClientError(args, err)
		}
		if err := client.CloseCQ(args.CQName); err != nil {
			return function.Result{}, classifyClientError(args, err)
		}
		msg := fmt.Sprintf("Closed the durable cq : %q for the durable client : %q.", args.CQName, args.ClientID)
		return function.SuccessMessage(ctx.Member().DisplayID(), msg), nil
	})
}

// All возвращает все функции административного слоя.
func All() []function.Function {
	return []function.Function{
		&ListDeployed{},
		&RegionDestroy{},
		&ListDurableCQs{},
		&CountDurableCQEvents{},
		&CloseDurableClient{},
		&CloseDurableCQ{},
	}
}
