package machine

import (
	"errors"
	"fmt"

	"tapevm/pkg/compiler"
)

var (
	// ErrInputExhausted is returned when Input runs with no bytes left and
	// the machine's EOF mode is EOFError.
	ErrInputExhausted = errors.New("input exhausted")
	// ErrStepLimit is returned by RunLimit when the step budget is spent
	// before the program halts.
	ErrStepLimit = errors.New("step limit reached")
)

// RuntimeError is a fatal error raised while executing an instruction.
type RuntimeError struct {
	PC  int
	Pos compiler.Position
	Op  compiler.Op
	Err error
}

func (e *RuntimeError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s at instruction %d (%s): %v", e.Op, e.PC, e.Pos, e.Err)
	}
	return fmt.Sprintf("%s at instruction %d: %v", e.Op, e.PC, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
