package compiler

import (
	"fmt"
	"strings"
)

// Disassemble renders p as one instruction per line, with its index and,
// when known, the source position it came from.
func Disassemble(p *Program) string {
	var sb strings.Builder
	for i, ins := range p.Code {
		fmt.Fprintf(&sb, "%04d  %-12s", i, ins)
		if i < len(p.Positions) {
			fmt.Fprintf(&sb, " ; %s", p.Positions[i])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Source renders p back into instruction characters, expanding move counts.
// Compiling the result yields an equivalent program. Ops outside the
// instruction set are written as '?'.
func Source(p *Program) string {
	var sb strings.Builder
	for _, ins := range p.Code {
		n := 1
		if ins.Op.IsMove() {
			n = ins.Arg
		}
		for j := 0; j < n; j++ {
			sb.WriteByte(ins.Op.Char())
		}
	}
	return sb.String()
}
