package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsFatalWrapped(t *testing.T) {
	err := fmt.Errorf("execute: %w", New("out of memory", nil))
	if !IsFatal(err) {
		t.Fatalf("expected wrapped failure to be fatal")
	}
	if IsFatal(errors.New("plain")) {
		t.Fatalf("plain error must not be fatal")
	}
}

func TestHandlerKeepsFirstFailure(t *testing.T) {
	var hooked []error
	h := NewHandler(nil, func(err error) { hooked = append(hooked, err) })
	first := New("stack exhausted", nil)
	h.NotifyFatal(first)
	h.NotifyFatal(New("second", nil))

	if h.Failure() != first {
		t.Fatalf("expected first failure, got %v", h.Failure())
	}
	if h.Count() != 2 || len(hooked) != 2 {
		t.Fatalf("unexpected counts: handler=%d hook=%d", h.Count(), len(hooked))
	}
}
