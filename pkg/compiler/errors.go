package compiler

import (
	"errors"
	"fmt"
)

// ErrMismatchedBracket is returned, wrapped in a *BracketError, when a loop
// bracket has no counterpart.
var ErrMismatchedBracket = errors.New("mismatched bracket")

// BracketError reports where an unbalanced bracket was found. Unclosed is
// true for a '[' still open at end of input and false for a stray ']'.
type BracketError struct {
	Pos      Position
	Unclosed bool
}

func (e *BracketError) Error() string {
	if e.Unclosed {
		return fmt.Sprintf("unmatched '[' at %s: %v", e.Pos, ErrMismatchedBracket)
	}
	return fmt.Sprintf("unmatched ']' at %s: %v", e.Pos, ErrMismatchedBracket)
}

func (e *BracketError) Unwrap() error {
	return ErrMismatchedBracket
}
