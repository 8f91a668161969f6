package dl1

import "fmt"

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}

// ErrSchema represents a missing or unreadable node in a file whose
// capabilities say it should be there.
type ErrSchema struct {
	Node string
	Err  error
}

func (e *ErrSchema) Error() string {
	return fmt.Sprintf("schema error at node %q: %v", e.Node, e.Err)
}

func (e *ErrSchema) Unwrap() error {
	return e.Err
}

// ErrRowCountMismatch represents a table whose length disagrees with the
// trigger stream it is supposed to follow row by row.
type ErrRowCountMismatch struct {
	Node     string
	Expected int
	Actual   int
}

func (e *ErrRowCountMismatch) Error() string {
	return fmt.Sprintf("row count mismatch at node %q: expected %d rows, have %d", e.Node, e.Expected, e.Actual)
}

// ErrUnboundObservation represents an event whose observation id has no
// simulation run header.
type ErrUnboundObservation struct {
	ObsID int32
}

func (e *ErrUnboundObservation) Error() string {
	return fmt.Sprintf("no simulation run header for observation %d", e.ObsID)
}
