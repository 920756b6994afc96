package function

import (
	"errors"
	"fmt"

	"gridadmin/internal/failure"
)

// DomainError — ожидаемый отказ, о котором пользователь может что-то сделать.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Domain создает доменную ошибку с сообщением.
func Domain(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DomainCause создает доменную ошибку, сохраняющую исходную причину.
func DomainCause(code Code, cause error) error {
	return &DomainError{Code: code, Err: cause}
}

// Body — тело функции; возвращает терминальный результат или ошибку.
type Body func() (Result, error)

// Complete выполняет body и отправляет ровно один терминальный результат.
//
// Порядок классификации: доменная ошибка -> DomainFailure; process-fatal
// сбой передается в failure.Handler и пробрасывается паникой дальше;
// любая другая ошибка или паника логируется и становится FatalFailure.
func Complete(ctx *Context, body Body) {
	memberID := ctx.Member().DisplayID()
	escalated := false

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err := panicError(rec)
		if failure.IsFatal(err) {
			if !escalated {
				ctx.Failures().NotifyFatal(err)
			}
			panic(rec)
		}
		ctx.Logger().Error("function panicked", "err", err)
		send(ctx, FatalFailure(memberID, err))
	}()

	res, err := body()
	if err == nil {
		send(ctx, res)
		return
	}

	var de *DomainError
	switch {
	case errors.As(err, &de):
		send(ctx, DomainFailure(memberID, de.Code, de.Error()))
	case failure.IsFatal(err):
		ctx.Failures().NotifyFatal(err)
		escalated = true
		panic(err)
	default:
		ctx.Logger().Error("function failed", "err", err)
		send(ctx, FatalFailure(memberID, err))
	}
}

func send(ctx *Context, r Result) {
	if err := ctx.Sender().LastResult(r); err != nil {
		ctx.Logger().Warn("result dropped", "outcome", r.Outcome().String(), "err", err)
	}
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
