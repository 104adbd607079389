/*
Package errors implements the error taxonomy shared by the ledger application
and its clients.

Every error returned by quorum code should wrap one of the root errors
declared in this package. Root errors carry an ABCI code, which is how a
failure delivered by the ledger is recognized again on the client side (see
ABCIError). Use ErrXyz.New / ErrXyz.Newf or Wrap at the point of creation to
attach a stacktrace. Only the innermost wrap records the stack.

Compare errors with the Is method of the root error:

	if errors.ErrNotFound.Is(err) {
		...
	}

Formatting an error with %+v prints the stacktrace of its creation point.
*/
package errors
