package quantum

import "errors"

var (
	// ErrInvalidArgument is returned for malformed inputs: mismatched lengths,
	// out-of-range bitstrings, depths beyond what a circuit can provide.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCircuitTooShort marks a circuit library that cannot be truncated to a
	// requested depth. It indicates a library construction error.
	ErrCircuitTooShort = errors.New("circuit shorter than required depth")

	// ErrUnresolvedSymbol is returned when a parameterized gate is simulated
	// without a value for one of its symbols.
	ErrUnresolvedSymbol = errors.New("unresolved symbol")
)
