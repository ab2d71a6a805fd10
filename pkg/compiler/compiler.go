package compiler

// Options controls code generation.
type Options struct {
	// Coalesce merges runs of same-direction pointer moves into a single
	// counted instruction.
	Coalesce bool
}

// DefaultOptions are the options used by Compile.
var DefaultOptions = Options{Coalesce: true}

// Compile translates source text into a Program using DefaultOptions.
func Compile(src string) (*Program, error) {
	return CompileWithOptions(src, DefaultOptions)
}

// CompileWithOptions translates source text into a Program. Characters other
// than the eight instruction characters are ignored. Unbalanced brackets are
// reported as a *BracketError before any code could run.
func CompileWithOptions(src string, opts Options) (*Program, error) {
	p := &Program{}
	var opens []int // indices of LoopStart instructions awaiting their ']'

	line, col := 1, 0
	for _, r := range src {
		col++
		if r == '\n' {
			line++
			col = 0
			continue
		}
		op, ok := opChars[r]
		if !ok {
			continue
		}
		pos := Position{Line: line, Column: col}
		pc := len(p.Code)

		switch op {
		case OpMoveLeft, OpMoveRight:
			if opts.Coalesce && pc > 0 && p.Code[pc-1].Op == op {
				p.Code[pc-1].Arg++
				continue
			}
			p.emit(Instruction{Op: op, Arg: 1}, pos)

		case OpLoopStart:
			opens = append(opens, pc)
			p.emit(Instruction{Op: OpLoopStart}, pos) // target patched at ']'

		case OpLoopEnd:
			if len(opens) == 0 {
				return nil, &BracketError{Pos: pos}
			}
			open := opens[len(opens)-1]
			opens = opens[:len(opens)-1]
			p.Code[open].Arg = pc
			p.emit(Instruction{Op: OpLoopEnd, Arg: open}, pos)

		default:
			p.emit(Instruction{Op: op}, pos)
		}
	}

	if len(opens) > 0 {
		return nil, &BracketError{Pos: p.Positions[opens[len(opens)-1]], Unclosed: true}
	}
	return p, nil
}

func (p *Program) emit(ins Instruction, pos Position) {
	p.Code = append(p.Code, ins)
	p.Positions = append(p.Positions, pos)
}
