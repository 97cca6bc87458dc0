package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// NotYetAvailable is returned when a ledger read keeps yielding a
	// zero-valued placeholder after the retry budget is exhausted.
	NotYetAvailable = ErrorKind("not yet available")

	InvalidArgument    = ErrorKind("invalid argument")
	ArgumentRequired   = ErrorKind("argument required")
	InternalError      = ErrorKind("internal error")
	Unsupported        = ErrorKind("unsupported")
	Timeout            = ErrorKind("timeout")
	Closed             = ErrorKind("closed")
	ConflictSetting    = ErrorKind("conflict setting")
	SomethingWentWrong = ErrorKind("something went wrong")

	// WorkflowBusy is returned when an allocation or refund workflow is
	// already holding the workflow lock.
	WorkflowBusy = ErrorKind("workflow already in progress")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
