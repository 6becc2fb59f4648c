package pedlog

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNoLocation is returned by Start when no log file location is
	// configured. The reader stays idle.
	ErrNoLocation = errors.New("no chat log location configured")

	// ErrReaderClosed is returned by Start after the reader has stopped.
	// A stopped reader cannot be restarted; create a new one.
	ErrReaderClosed = errors.New("reader closed")
)

// ReaderOp identifies the step that failed.
type ReaderOp string

const (
	// ReaderOpLocate is resolving the log file location.
	ReaderOpLocate ReaderOp = "locate"
	// ReaderOpOpen is opening the log file for following.
	ReaderOpOpen ReaderOp = "open"
	// ReaderOpRules is loading a rule file.
	ReaderOpRules ReaderOp = "rules"
	// ReaderOpRead is following the log file after it was opened.
	ReaderOpRead ReaderOp = "read"
)

// ReaderError wraps an error with the operation and file it concerns.
type ReaderError struct {
	Op   ReaderOp
	Path string
	Err  error
}

func (e *ReaderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}
