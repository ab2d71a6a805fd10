package machine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"tapevm/pkg/compiler"
)

// Machine executes a compiled program against a growable byte tape.
type Machine struct {
	Program *compiler.Program

	Tape *Tape
	Ptr  int // index of the current cell in Tape
	PC   int // index of the next instruction in Program.Code

	// Steps counts executed instructions.
	Steps uint64

	Halted bool
	// Waiting is set when Input found no byte ready on a non-blocking
	// source. PC still points at the Input instruction.
	Waiting bool

	// EOF selects the behaviour of Input at end of input.
	EOF EOFMode

	// Input is read by Input instructions. If nil, os.Stdin is used.
	Input io.ByteReader
	// Output receives bytes from Output instructions. If nil, os.Stdout is
	// used.
	Output io.ByteWriter

	// Trace, if set, is called before each instruction executes. An Input
	// retried while waiting is traced once.
	Trace func(m *Machine, ins compiler.Instruction)

	// RunID identifies this run in snapshots and logs.
	RunID string

	stdin  io.ByteReader
	stdout io.ByteWriter
}

// New returns a machine ready to run p from its first instruction with a
// single zero cell. A nil program is treated as empty.
func New(p *compiler.Program) *Machine {
	if p == nil {
		p = &compiler.Program{}
	}
	return &Machine{
		Program: p,
		Tape:    NewTape(),
		RunID:   uuid.NewString(),
	}
}

func (m *Machine) inputSource() io.ByteReader {
	if m.Input != nil {
		return m.Input
	}
	if m.stdin == nil {
		m.stdin = bufio.NewReader(os.Stdin)
	}
	return m.stdin
}

func (m *Machine) outputSink() io.ByteWriter {
	if m.Output != nil {
		return m.Output
	}
	if m.stdout == nil {
		m.stdout = NewWriterSink(os.Stdout)
	}
	return m.stdout
}

// Cell returns the value of the current cell.
func (m *Machine) Cell() byte {
	return m.Tape.Get(m.Ptr)
}

func (m *Machine) fail(ins compiler.Instruction, err error) error {
	return &RuntimeError{
		PC:  m.PC,
		Pos: m.Program.PositionOf(m.PC),
		Op:  ins.Op,
		Err: err,
	}
}

// Step executes one instruction. Once PC runs past the last instruction the
// machine halts and further calls do nothing. A failing instruction leaves
// PC on itself and the effects of earlier instructions in place.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	code := m.Program.Code
	if m.PC >= len(code) {
		m.Halted = true
		return nil
	}

	ins := code[m.PC]
	// A waiting machine retries the Input it already traced.
	if m.Trace != nil && !m.Waiting {
		m.Trace(m, ins)
	}

	switch ins.Op {
	case compiler.OpIncrement:
		m.Tape.Set(m.Ptr, m.Tape.Get(m.Ptr)+1)

	case compiler.OpDecrement:
		m.Tape.Set(m.Ptr, m.Tape.Get(m.Ptr)-1)

	case compiler.OpMoveLeft:
		if m.Ptr < ins.Arg {
			m.Tape.GrowLeft(ins.Arg - m.Ptr)
			m.Ptr = 0
		} else {
			m.Ptr -= ins.Arg
		}

	case compiler.OpMoveRight:
		m.Ptr += ins.Arg
		if n := m.Tape.Len(); m.Ptr >= n {
			m.Tape.GrowRight(m.Ptr - n + 1)
		}

	case compiler.OpOutput:
		if err := m.outputSink().WriteByte(m.Tape.Get(m.Ptr)); err != nil {
			return m.fail(ins, fmt.Errorf("write output: %w", err))
		}

	case compiler.OpInput:
		b, err := m.inputSource().ReadByte()
		switch {
		case err == nil:
			m.Tape.Set(m.Ptr, b)
		case errors.Is(err, ErrInputPending):
			m.Waiting = true
			return nil
		case errors.Is(err, io.EOF):
			switch m.EOF {
			case EOFZero:
				m.Tape.Set(m.Ptr, 0)
			case EOFUnchanged:
			default:
				return m.fail(ins, ErrInputExhausted)
			}
		default:
			return m.fail(ins, fmt.Errorf("read input: %w", err))
		}

	case compiler.OpLoopStart:
		if m.Tape.Get(m.Ptr) == 0 {
			m.PC = ins.Arg
		}

	case compiler.OpLoopEnd:
		if m.Tape.Get(m.Ptr) != 0 {
			m.PC = ins.Arg
		}

	default:
		return m.fail(ins, fmt.Errorf("unknown op %d", uint8(ins.Op)))
	}

	m.Waiting = false
	m.PC++
	m.Steps++
	if m.PC >= len(code) {
		m.Halted = true
	}
	return nil
}

// Run executes until the program halts or an instruction fails. It returns
// ErrInputPending if the input source is non-blocking and runs dry; use
// RunUntilDone for such sources.
func (m *Machine) Run() error {
	return m.RunLimit(0)
}

// RunLimit is like Run but executes at most limit instructions, returning
// ErrStepLimit if the program is still running afterwards. A limit of 0
// means no limit.
func (m *Machine) RunLimit(limit uint64) error {
	start := m.Steps
	for !m.Halted {
		if limit > 0 && m.Steps-start >= limit {
			return ErrStepLimit
		}
		if err := m.Step(); err != nil {
			return err
		}
		if m.Waiting {
			return ErrInputPending
		}
	}
	return nil
}

// RunUntilDone executes up to budget instructions, stopping early when the
// machine halts or starts waiting for input. It is meant to be called
// repeatedly from a host loop.
func (m *Machine) RunUntilDone(budget int) error {
	for i := 0; i < budget && !m.Halted; i++ {
		if err := m.Step(); err != nil {
			return err
		}
		if m.Waiting {
			break
		}
	}
	return nil
}
