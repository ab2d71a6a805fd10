package compiler

import "fmt"

// Op identifies the kind of a decoded instruction.
type Op uint8

const (
	OpIncrement Op = iota // +
	OpDecrement           // -
	OpMoveLeft            // <  (Arg = count)
	OpMoveRight           // >  (Arg = count)
	OpOutput              // .
	OpInput               // ,
	OpLoopStart           // [  (Arg = index of matching OpLoopEnd)
	OpLoopEnd             // ]  (Arg = index of matching OpLoopStart)
)

var opNames = [...]string{
	OpIncrement: "INC",
	OpDecrement: "DEC",
	OpMoveLeft:  "MOVL",
	OpMoveRight: "MOVR",
	OpOutput:    "OUT",
	OpInput:     "IN",
	OpLoopStart: "LOOP",
	OpLoopEnd:   "ENDL",
}

// opChars maps source characters to the op they compile to.
var opChars = map[rune]Op{
	'+': OpIncrement,
	'-': OpDecrement,
	'<': OpMoveLeft,
	'>': OpMoveRight,
	'.': OpOutput,
	',': OpInput,
	'[': OpLoopStart,
	']': OpLoopEnd,
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

const opSourceChars = "+-<>.,[]"

// Char returns the source character op is written as, or '?' for an op
// outside the instruction set.
func (op Op) Char() byte {
	if int(op) < len(opSourceChars) {
		return opSourceChars[op]
	}
	return '?'
}

// IsMove reports whether op moves the data pointer.
func (op Op) IsMove() bool {
	return op == OpMoveLeft || op == OpMoveRight
}

// IsLoop reports whether op is one half of a loop pair.
func (op Op) IsLoop() bool {
	return op == OpLoopStart || op == OpLoopEnd
}

// Instruction is a single decoded instruction. Arg holds the move count for
// OpMoveLeft/OpMoveRight and the index of the matching half for
// OpLoopStart/OpLoopEnd; it is zero for every other op.
type Instruction struct {
	_   struct{} `cbor:",toarray"`
	Op  Op
	Arg int
}

func (ins Instruction) String() string {
	switch {
	case ins.Op.IsMove():
		return fmt.Sprintf("%-4s %d", ins.Op, ins.Arg)
	case ins.Op.IsLoop():
		return fmt.Sprintf("%-4s -> %04d", ins.Op, ins.Arg)
	default:
		return ins.Op.String()
	}
}

// Position is a 1-based line/column location in the source text.
type Position struct {
	_      struct{} `cbor:",toarray"`
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Program is a compiled instruction sequence. Positions[i] is where Code[i]
// was written in the source; it may be empty for programs built by hand.
type Program struct {
	Code      []Instruction
	Positions []Position
}

// Len returns the number of instructions in p.
func (p *Program) Len() int {
	return len(p.Code)
}

// PositionOf returns the source position of instruction pc, or the zero
// Position if none was recorded.
func (p *Program) PositionOf(pc int) Position {
	if pc >= 0 && pc < len(p.Positions) {
		return p.Positions[pc]
	}
	return Position{}
}

// Pairs returns the (open, close) index of every loop in p, ordered by the
// position of the closing instruction.
func (p *Program) Pairs() [][2]int {
	var pairs [][2]int
	for i, ins := range p.Code {
		if ins.Op == OpLoopEnd {
			pairs = append(pairs, [2]int{ins.Arg, i})
		}
	}
	return pairs
}

// Validate checks that every move count is positive and that loop
// instructions nest properly, each pointing at its counterpart.
func (p *Program) Validate() error {
	n := len(p.Code)
	if len(p.Positions) != 0 && len(p.Positions) != n {
		return fmt.Errorf("program has %d instructions but %d positions", n, len(p.Positions))
	}
	var opens []int
	for i, ins := range p.Code {
		switch ins.Op {
		case OpIncrement, OpDecrement, OpOutput, OpInput:
		case OpMoveLeft, OpMoveRight:
			if ins.Arg < 1 {
				return fmt.Errorf("instruction %04d: %s count must be positive, got %d", i, ins.Op, ins.Arg)
			}
		case OpLoopStart:
			if ins.Arg <= i || ins.Arg >= n {
				return fmt.Errorf("instruction %04d: jump target %d out of range: %w", i, ins.Arg, ErrMismatchedBracket)
			}
			opens = append(opens, i)
		case OpLoopEnd:
			if len(opens) == 0 {
				return fmt.Errorf("instruction %04d: %s without open loop: %w", i, ins.Op, ErrMismatchedBracket)
			}
			open := opens[len(opens)-1]
			opens = opens[:len(opens)-1]
			if ins.Arg != open || p.Code[open].Arg != i {
				return fmt.Errorf("instruction %04d: loop targets %d/%d do not pair: %w", i, ins.Arg, p.Code[open].Arg, ErrMismatchedBracket)
			}
		default:
			return fmt.Errorf("instruction %04d: unknown op %d", i, uint8(ins.Op))
		}
	}
	if len(opens) > 0 {
		return fmt.Errorf("instruction %04d: loop never closed: %w", opens[len(opens)-1], ErrMismatchedBracket)
	}
	return nil
}
