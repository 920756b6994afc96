package failure

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Error описывает нестабильность процесса, после которой продолжать работу нельзя.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "process failure: " + e.Reason
	}
	return fmt.Sprintf("process failure: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New создает process-fatal ошибку.
func New(reason string, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// IsFatal сообщает, содержит ли цепочка err process-fatal ошибку.
func IsFatal(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// Handler — процессный обработчик фатальных сбоев.
type Handler struct {
	mu      sync.Mutex
	first   error
	count   int
	logger  *slog.Logger
	onFatal func(error)
}

// NewHandler создает обработчик; onFatal может быть nil.
func NewHandler(logger *slog.Logger, onFatal func(error)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, onFatal: onFatal}
}

// NotifyFatal фиксирует сбой до того, как он будет проброшен дальше.
func (h *Handler) NotifyFatal(err error) {
	h.mu.Lock()
	h.count++
	if h.first == nil {
		h.first = err
	}
	hook := h.onFatal
	h.mu.Unlock()

	h.logger.Error("process failure initiated", "err", err)
	if hook != nil {
		hook(err)
	}
}

// Failure возвращает первый зафиксированный сбой или nil.
func (h *Handler) Failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.first
}

// Count возвращает число вызовов NotifyFatal.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
