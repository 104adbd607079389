package errors

import (
	stdlib "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestCause(t *testing.T) {
	std := stdlib.New("this is a stdlib error")

	cases := map[string]struct {
		err  error
		root error
	}{
		"Errors are self-causing": {
			err:  ErrNotFound,
			root: ErrNotFound,
		},
		"Wrap reveals root cause": {
			err:  Wrap(ErrNotFound, "foo"),
			root: ErrNotFound,
		},
		"Cause works for stderr as root": {
			err:  Wrap(std, "Some helpful text"),
			root: std,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := errors.Cause(tc.err); got != tc.root {
				t.Fatal("unexpected result")
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		a      *Error
		b      error
		wantIs bool
	}{
		"instance of the same error": {
			a:      ErrNotFound,
			b:      ErrNotFound,
			wantIs: true,
		},
		"two different coded errors": {
			a:      ErrNotFound,
			b:      ErrInvalidModel,
			wantIs: false,
		},
		"successful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      errors.Wrap(ErrNotFound, "gone"),
			wantIs: true,
		},
		"unsuccessful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      errors.Wrap(ErrInvalidState, "gone"),
			wantIs: false,
		},
		"stale is not terminal": {
			a:      ErrTerminalState,
			b:      ErrProposalStale.New("index 3"),
			wantIs: false,
		},
		"labeled error keeps its cause": {
			a:      ErrTimeLockNotElapsed,
			b:      WithKind(ErrBroadcastRejected, ErrTimeLockNotElapsed.New("wait")),
			wantIs: true,
		},
		"labeled error is of the label kind": {
			a:      ErrBroadcastRejected,
			b:      Wrap(WithKind(ErrBroadcastRejected, ErrTimeLockNotElapsed.New("wait")), "submit"),
			wantIs: true,
		},
		"nil is nil": {
			a:      nil,
			b:      nil,
			wantIs: true,
		},
		"nil is not not-nil": {
			a:      nil,
			b:      ErrNotFound,
			wantIs: false,
		},
		"not-nil is not nil": {
			a:      ErrNotFound,
			b:      nil,
			wantIs: false,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.a.Is(tc.b); got != tc.wantIs {
				t.Fatalf("unexpected result: %v", got)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "nothing"); err != nil {
		t.Fatalf("want nil, got %v", err)
	}
}

func TestWrapAttachesStackOnce(t *testing.T) {
	err := Wrap(Wrap(ErrNotFound, "inner"), "outer")
	if got := err.Error(); got != "outer: inner: not found" {
		t.Fatalf("unexpected message: %q", got)
	}
	full := fmt.Sprintf("%+v", err)
	if !strings.Contains(full, "errors_test.go") {
		t.Fatalf("stacktrace not printed: %s", full)
	}
}

func TestRecover(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err)
		panic("boom")
	}
	if err := fn(); !ErrPanic.Is(err) {
		t.Fatalf("want panic error, got %v", err)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("registering a used code must panic")
		}
	}()
	Register(ErrNotFound.code, "again")
}
