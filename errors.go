package stf

import "fmt"

// FormatError reports a structural problem with the trace stream itself:
// bad magic, an out-of-place record, a missing END_HEADER, an unknown or
// unregistered descriptor. Format errors are always fatal for the reader
// that produced them.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "stf: format error: " + e.Msg }

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// MismatchError reports a value read from the trace that doesn't agree
// with either an expectation passed in by the caller (e.g. ProtocolId) or
// a value computed independently from the trace itself (e.g. a decoded
// branch target).
type MismatchError struct {
	Msg string
}

func (e *MismatchError) Error() string { return "stf: mismatch: " + e.Msg }

func mismatchErrorf(format string, args ...interface{}) error {
	return &MismatchError{Msg: fmt.Sprintf(format, args...)}
}

// SemanticError reports a trace that is well-formed but violates a rule
// this library enforces: an indirect branch with no target, more than two
// integer source operands on a branch, a clock re-registered under a
// conflicting name, and similar.
type SemanticError struct {
	Msg string
}

func (e *SemanticError) Error() string { return "stf: semantic error: " + e.Msg }

func semanticErrorf(format string, args ...interface{}) error {
	return &SemanticError{Msg: fmt.Sprintf(format, args...)}
}

// TranslationError reports that a page-table resolver could not translate
// a virtual address at a given instruction index, either because no SATP
// was known yet or because the walk never reached a leaf PTE.
type TranslationError struct {
	VA    uint64
	Index uint64
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("stf: address translation failure for VA 0x%x at index 0x%x", e.VA, e.Index)
}

// SkippingError is returned when a caller requests an operation (a fast,
// chunk-index-based seek) that is unavailable because user-mode skipping
// has been enabled on the reader; chunk boundaries don't respect skipping,
// so only a slow linear seek can honor it.
type SkippingError struct {
	Msg string
}

func (e *SkippingError) Error() string { return "stf: " + e.Msg }

func skippingErrorf(format string, args ...interface{}) error {
	return &SkippingError{Msg: fmt.Sprintf(format, args...)}
}
