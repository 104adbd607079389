package errors

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is used whenever a request without sufficient
	// authorization is handled, for example a missing or invalid signature.
	ErrUnauthorized = Register(2, "unauthorized")

	// ErrNotFound is used when a requested account or record does not
	// exist. Callers must never synthesize a default in its place.
	ErrNotFound = Register(3, "not found")

	// ErrInvalidMsg is returned whenever a message is invalid and cannot be
	// handled.
	ErrInvalidMsg = Register(4, "invalid message")

	// ErrInvalidModel is returned whenever a model is invalid and cannot
	// be persisted.
	ErrInvalidModel = Register(5, "invalid model")

	// ErrDuplicate is returned when there is a record already that has the
	// same unique key.
	ErrDuplicate = Register(6, "duplicate")

	// ErrHuman is returned when application reaches a code path which
	// should never be reached if the code was written as expected.
	ErrHuman = Register(7, "coding error")

	// ErrInvalidState is returned when an object is in invalid state.
	ErrInvalidState = Register(10, "invalid state")

	// ErrInvalidType is returned whenever the type is not what was expected.
	ErrInvalidType = Register(11, "invalid type")

	// ErrInsufficientAmount is returned when an account balance cannot
	// cover a transfer.
	ErrInsufficientAmount = Register(12, "insufficient amount")

	// ErrInvalidAmount stands for invalid amount of whatever.
	ErrInvalidAmount = Register(13, "invalid amount")

	// ErrInvalidInput stands for general input problems indication.
	ErrInvalidInput = Register(14, "invalid input")

	// ErrExpired is returned when a transaction references a checkpoint
	// that is no longer recent enough to be accepted.
	ErrExpired = Register(15, "expired")

	// ErrInvalidAddress is returned when a key or address is malformed.
	ErrInvalidAddress = Register(20, "invalid address")

	// ErrPermissionDenied is returned when a signer is not a member of the
	// multisig or lacks the permission bit the operation requires.
	ErrPermissionDenied = Register(21, "permission denied")

	// ErrIndexConflict is returned when a transaction is created with an
	// index different than the next free one.
	ErrIndexConflict = Register(22, "transaction index conflict")

	// ErrDuplicateVote is returned when a member votes twice on the same
	// proposal.
	ErrDuplicateVote = Register(23, "duplicate vote")

	// ErrThresholdNotMet is returned when a proposal is executed before
	// reaching the approval threshold.
	ErrThresholdNotMet = Register(24, "threshold not met")

	// ErrTimeLockNotElapsed is returned when an approved proposal is
	// executed before its time lock passed.
	ErrTimeLockNotElapsed = Register(25, "time lock not elapsed")

	// ErrProposalStale is returned when a proposal was invalidated by a
	// configuration change executed after its creation.
	ErrProposalStale = Register(26, "proposal stale")

	// ErrTerminalState is returned when a proposal was already rejected,
	// cancelled or executed.
	ErrTerminalState = Register(27, "proposal in terminal state")

	// ErrAlreadyProcessed is returned by the ledger when the same signed
	// transaction is submitted again after it was committed.
	ErrAlreadyProcessed = Register(30, "transaction already processed")

	// ErrBroadcastTimeout is returned when a transaction could not be
	// confirmed within the broadcast time budget.
	ErrBroadcastTimeout = Register(31, "broadcast timeout")

	// ErrBroadcastRejected is returned when the ledger deterministically
	// rejected a submitted transaction. It wraps the ledger fault.
	ErrBroadcastRejected = Register(32, "broadcast rejected")

	// ErrNetwork is returned when the ledger node cannot be reached.
	ErrNetwork = Register(33, "network failure")

	// ErrPanic is only set when we recover from a panic, so we know to
	// redact potentially sensitive system info.
	ErrPanic = Register(111222, "panic")
)

// Register returns an error instance that should be used as the base for
// creating error instances during runtime.
//
// This function ensures that no error code is used twice. Attempt to reuse
// an error code results in panic.
//
// Use this function only during a program startup phase.
func Register(code uint32, description string) *Error {
	if e, ok := usedCodes[code]; ok {
		panic(fmt.Sprintf("error with code %d is already registered: %q", code, e.desc))
	}
	err := &Error{
		code: code,
		desc: description,
	}
	usedCodes[err.code] = err
	return err
}

// usedCodes is keeping track of used codes to ensure their uniqueness.
var usedCodes = map[uint32]*Error{
	1: nil, // Error code 1 is restricted for internal errors.
}

// Error represents a root error.
//
// Each error instance created during the runtime should wrap one of the
// declared root errors. This allows error tests and returning all errors to
// the client in a safe manner.
type Error struct {
	code uint32
	desc string
}

func (e Error) Error() string {
	return e.desc
}

func (e Error) ABCICode() uint32 {
	return e.code
}

// New returns a new error. Returned instance is having the root cause set to
// this error. Below two lines are equal
//   e.New("my description")
//   Wrap(e, "my description")
func (e *Error) New(description string) error {
	return Wrap(e, description)
}

// Newf is basically New with formatting capabilities.
func (e *Error) Newf(description string, args ...interface{}) error {
	return e.New(fmt.Sprintf(description, args...))
}

// Is check if given error instance is of a given kind. This involves
// unwrapping given error using the Cause method if available.
func (kind *Error) Is(err error) bool {
	// Reflect usage is necessary to correctly compare with
	// a nil implementation of an error.
	if kind == nil {
		if err == nil {
			return true
		}
		return reflect.ValueOf(err).IsNil()
	}

	for {
		if err == kind {
			return true
		}
		if k, ok := err.(kinder); ok && k.Kind() == kind {
			return true
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return false
		}
	}
}

// Wrap extends given error with an additional information.
//
// If the wrapped error does not provide ABCICode method (ie. stdlib errors),
// it will be labeled as internal error.
//
// If err is nil, this returns nil, avoiding the need for an if statement when
// wrapping a error returned at the end of a function.
func Wrap(err error, description string) error {
	if err == nil {
		return nil
	}

	// If this error does not carry the stacktrace information yet, attach
	// one. This should be done only once per error at the lowest frame
	// possible (most inner wrap).
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}

	return &wrappedError{
		parent: err,
		msg:    description,
	}
}

// Wrapf extends given error with an additional information.
//
// This function works like Wrap function with additional functionality of
// formatting the input as specified.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

type wrappedError struct {
	// This error layer description.
	msg string
	// The underlying error that triggered this one.
	parent error
}

func (e *wrappedError) Error() string {
	return fmt.Sprintf("%s: %s", e.msg, e.parent.Error())
}

func (e *wrappedError) Cause() error {
	return e.parent
}

func (e *wrappedError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.msg, e.parent)
		return
	}
	fmt.Fprint(s, e.Error())
}

// Recover captures a panic and stop its propagation. If panic happens it is
// transformed into a ErrPanic instance and assigned to given error. Call this
// function using defer in order to work as expected.
func Recover(err *error) {
	if r := recover(); r != nil {
		*err = Wrapf(ErrPanic, "%v", r)
	}
}

// WithKind labels err with an additional root error. The result is both of
// the given kind and of the kind of err, while its ABCI code is the one of
// kind. Use it when a failure must be classified without hiding its cause,
// for example a ledger fault that rejected a broadcast.
func WithKind(kind *Error, err error) error {
	if err == nil {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	return &kindError{kind: kind, parent: err}
}

type kindError struct {
	kind   *Error
	parent error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind.desc, e.parent.Error())
}

func (e *kindError) Cause() error {
	return e.parent
}

func (e *kindError) Kind() *Error {
	return e.kind
}

func (e *kindError) ABCICode() uint32 {
	return e.kind.code
}

type kinder interface {
	Kind() *Error
}

// causer is an interface implemented by an error that supports wrapping. Use
// it to test if an error wraps another error instance.
type causer interface {
	Cause() error
}

type stackTracer interface {
	error
	StackTrace() errors.StackTrace
}

// stackTrace returns the first found stack trace frame carried by given
// error or any wrapped error. It returns nil if no stack trace is found.
func stackTrace(err error) errors.StackTrace {
	for {
		if st, ok := err.(stackTracer); ok {
			return st.StackTrace()
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return nil
		}
	}
}
