package machine

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"tapevm/pkg/compiler"
)

// newTestMachine compiles src and binds the machine to the given input and a
// buffer for output.
func newTestMachine(t *testing.T, src string, input string) (*Machine, *bytes.Buffer) {
	t.Helper()
	p, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	m := New(p)
	out := new(bytes.Buffer)
	m.Input = strings.NewReader(input)
	m.Output = out
	return m, out
}

func TestEmptyProgramHalts(t *testing.T) {
	m, out := newTestMachine(t, "only comments here", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !m.Halted || m.Steps != 0 || out.Len() != 0 {
		t.Errorf("expected immediate halt with no output, got halted=%t steps=%d out=%q", m.Halted, m.Steps, out.Bytes())
	}
}

func TestWraparound(t *testing.T) {
	m, _ := newTestMachine(t, "-", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Cell() != 255 {
		t.Errorf("0 - 1: expected 255, got %d", m.Cell())
	}

	m, _ = newTestMachine(t, "+", "")
	m.Tape.Set(0, 255)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Cell() != 0 {
		t.Errorf("255 + 1: expected 0, got %d", m.Cell())
	}
}

func TestAddViaLoop(t *testing.T) {
	m, out := newTestMachine(t, "++>+++++[<+>-]<.", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Ptr != 0 || m.Tape.Get(0) != 7 || m.Tape.Get(1) != 0 {
		t.Errorf("expected ptr=0 cells=[7 0], got ptr=%d cells=%v", m.Ptr, m.Tape.Cells())
	}
	if !bytes.Equal(out.Bytes(), []byte{7}) {
		t.Errorf("expected output [7], got %v", out.Bytes())
	}
}

func TestEchoInput(t *testing.T) {
	m, out := newTestMachine(t, ",.", "A")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "A" {
		t.Errorf("expected output %q, got %q", "A", out.String())
	}
}

func TestInfiniteLoopHitsStepLimit(t *testing.T) {
	m, _ := newTestMachine(t, "+[]", "")
	err := m.RunLimit(10000)
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
	if m.Halted {
		t.Error("machine should still be running")
	}
	if m.Steps != 10000 {
		t.Errorf("expected 10000 steps, got %d", m.Steps)
	}

	// The budget is per call.
	if err := m.RunLimit(5); !errors.Is(err, ErrStepLimit) || m.Steps != 10005 {
		t.Errorf("second RunLimit: err=%v steps=%d", err, m.Steps)
	}
}

func TestLeftwardGrowth(t *testing.T) {
	m, _ := newTestMachine(t, "<<<+", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Tape.Len() < 4 {
		t.Fatalf("expected at least 4 cells, got %d", m.Tape.Len())
	}
	if m.Ptr != 0 || m.Cell() != 1 {
		t.Errorf("expected increment on new leftmost cell, got ptr=%d cells=%v", m.Ptr, m.Tape.Cells())
	}

	m, _ = newTestMachine(t, "++<<<+", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := m.Tape.Cells(), []byte{1, 0, 0, 2}; !bytes.Equal(got, want) {
		t.Errorf("expected starting cell rightmost: got %v, want %v", got, want)
	}
}

func TestMoveLeftWithinTape(t *testing.T) {
	m, _ := newTestMachine(t, ">>>>><<+", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Tape.Len() != 6 || m.Ptr != 3 || m.Tape.Get(3) != 1 {
		t.Errorf("expected 6 cells with cell 3 = 1, got ptr=%d cells=%v", m.Ptr, m.Tape.Cells())
	}
}

func TestMoveLeftPartlyOffTape(t *testing.T) {
	m, _ := newTestMachine(t, ">+<<<+", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := m.Tape.Cells(), []byte{1, 0, 0, 1}; !bytes.Equal(got, want) || m.Ptr != 0 {
		t.Errorf("got ptr=%d cells=%v, want ptr=0 cells=%v", m.Ptr, got, want)
	}
}

func TestLoopSkippedWhenCellZero(t *testing.T) {
	m, _ := newTestMachine(t, "[+++]+", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Cell() != 1 {
		t.Errorf("expected loop body skipped, cell=%d", m.Cell())
	}
	// LOOP then INC: the jump lands on ENDL and the advance moves past it.
	if m.Steps != 2 {
		t.Errorf("expected 2 steps, got %d", m.Steps)
	}
}

func TestLoopReentersBody(t *testing.T) {
	m, _ := newTestMachine(t, "+++[>++<-]", "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := m.Tape.Cells(), []byte{0, 6}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	// 3 INC + LOOP + 3 * (MOVR INC INC MOVL DEC ENDL)
	if m.Steps != 3+1+3*6 {
		t.Errorf("expected %d steps, got %d", 3+1+3*6, m.Steps)
	}
}

func TestHelloWorld(t *testing.T) {
	const hello = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`
	m, out := newTestMachine(t, hello, "")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "Hello World!\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestInputExhaustedIsFatal(t *testing.T) {
	m, out := newTestMachine(t, "+++.>,.", "")
	err := m.Run()
	if !errors.Is(err, ErrInputExhausted) {
		t.Fatalf("expected ErrInputExhausted, got %v", err)
	}
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if rerr.PC != 5 || rerr.Op != compiler.OpInput || rerr.Pos != (compiler.Position{Line: 1, Column: 6}) {
		t.Errorf("unexpected error location: %+v", rerr)
	}
	// Effects before the failing instruction stay; nothing after it runs.
	if m.Tape.Get(0) != 3 || m.Ptr != 1 || m.PC != 5 || m.Halted {
		t.Errorf("unexpected state after abort: ptr=%d pc=%d halted=%t cells=%v", m.Ptr, m.PC, m.Halted, m.Tape.Cells())
	}
	if !bytes.Equal(out.Bytes(), []byte{3}) {
		t.Errorf("expected output [3], got %v", out.Bytes())
	}
}

func TestEOFModes(t *testing.T) {
	tests := []struct {
		mode EOFMode
		want byte
	}{
		{EOFUnchanged, 3},
		{EOFZero, 0},
	}
	for _, tc := range tests {
		m, _ := newTestMachine(t, "+++,", "")
		m.EOF = tc.mode
		if err := m.Run(); err != nil {
			t.Fatalf("%s: Run: %v", tc.mode, err)
		}
		if m.Cell() != tc.want {
			t.Errorf("%s: expected cell %d, got %d", tc.mode, tc.want, m.Cell())
		}
	}
}

func TestCatUntilEOF(t *testing.T) {
	// With EOF as zero, ",[.,]" copies input to output.
	m, out := newTestMachine(t, ",[.,]", "copy me")
	m.EOF = EOFZero
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "copy me" {
		t.Errorf("got %q", out.String())
	}
}

func TestParseEOFMode(t *testing.T) {
	for in, want := range map[string]EOFMode{"": EOFError, "error": EOFError, "Zero": EOFZero, " unchanged ": EOFUnchanged} {
		got, err := ParseEOFMode(in)
		if err != nil || got != want {
			t.Errorf("ParseEOFMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseEOFMode("minus-one"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestInputQueueWaits(t *testing.T) {
	p, err := compiler.Compile(",.,.")
	if err != nil {
		t.Fatal(err)
	}
	m := New(p)
	q := &InputQueue{}
	out := new(bytes.Buffer)
	m.Input = q
	m.Output = out

	if err := m.RunUntilDone(100); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}
	if !m.Waiting || m.PC != 0 || m.Steps != 0 {
		t.Fatalf("expected to wait on first input, got waiting=%t pc=%d steps=%d", m.Waiting, m.PC, m.Steps)
	}

	q.Push('h')
	if err := m.RunUntilDone(100); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}
	if !m.Waiting || m.PC != 2 || out.String() != "h" {
		t.Fatalf("expected to wait on second input, got waiting=%t pc=%d out=%q", m.Waiting, m.PC, out.String())
	}

	q.Push('i')
	if err := m.RunUntilDone(100); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}
	if !m.Halted || m.Waiting || out.String() != "hi" {
		t.Errorf("expected halt with output %q, got halted=%t waiting=%t out=%q", "hi", m.Halted, m.Waiting, out.String())
	}
}

func TestInputQueueCloseMeansEOF(t *testing.T) {
	p, err := compiler.Compile(",")
	if err != nil {
		t.Fatal(err)
	}
	m := New(p)
	q := &InputQueue{}
	m.Input = q
	q.Close()
	if err := m.RunUntilDone(10); !errors.Is(err, ErrInputExhausted) {
		t.Errorf("expected ErrInputExhausted, got %v", err)
	}
}

func TestRunReportsPendingInput(t *testing.T) {
	p, err := compiler.Compile(",")
	if err != nil {
		t.Fatal(err)
	}
	m := New(p)
	m.Input = &InputQueue{}
	if err := m.Run(); !errors.Is(err, ErrInputPending) {
		t.Errorf("expected ErrInputPending, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestOutputErrorIsFatal(t *testing.T) {
	m, _ := newTestMachine(t, "+.+", "")
	m.Output = NewWriterSink(failingWriter{})
	err := m.Run()
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected io.ErrClosedPipe, got %v", err)
	}
	if m.Cell() != 1 || m.PC != 1 {
		t.Errorf("unexpected state: cell=%d pc=%d", m.Cell(), m.PC)
	}
}

func TestTraceSeesEveryInstruction(t *testing.T) {
	m, _ := newTestMachine(t, "++[-]", "")
	var ops []string
	m.Trace = func(_ *Machine, ins compiler.Instruction) {
		ops = append(ops, ins.Op.String())
	}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "INC INC LOOP DEC ENDL DEC ENDL"
	if got := strings.Join(ops, " "); got != want {
		t.Errorf("trace = %q; want %q", got, want)
	}
}

func TestStepAfterHaltIsNoop(t *testing.T) {
	m, _ := newTestMachine(t, "+", "")
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if err := m.Step(); err != nil || m.Steps != 1 || m.Cell() != 1 {
		t.Errorf("Step after halt changed state: err=%v steps=%d cell=%d", err, m.Steps, m.Cell())
	}
}

// Coalescing must not change what a program does.
func TestCoalescedMatchesPlain(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		var sb strings.Builder
		for j := 0; j < 60; j++ {
			sb.WriteByte("+-<>.<>>"[r.Intn(8)])
			if r.Intn(8) == 0 {
				sb.WriteString("[-]")
			}
		}
		src := sb.String()

		plain, err := compiler.CompileWithOptions(src, compiler.Options{})
		if err != nil {
			t.Fatal(err)
		}
		coalesced, err := compiler.Compile(src)
		if err != nil {
			t.Fatal(err)
		}

		var outA, outB bytes.Buffer
		a, b := New(plain), New(coalesced)
		a.Output, b.Output = &outA, &outB
		if err := a.RunLimit(100000); err != nil {
			t.Fatalf("%q plain: %v", src, err)
		}
		if err := b.RunLimit(100000); err != nil {
			t.Fatalf("%q coalesced: %v", src, err)
		}
		if !bytes.Equal(outA.Bytes(), outB.Bytes()) || !bytes.Equal(a.Tape.Cells(), b.Tape.Cells()) || a.Ptr != b.Ptr {
			t.Fatalf("%q: plain and coalesced runs differ", src)
		}
	}
}

func TestTraceSkipsInputRetries(t *testing.T) {
	m, _ := newTestMachine(t, "+,.", "")
	queue := &InputQueue{}
	m.Input = queue
	var ops []string
	m.Trace = func(_ *Machine, ins compiler.Instruction) {
		ops = append(ops, ins.Op.String())
	}

	for i := 0; i < 3; i++ {
		if err := m.RunUntilDone(10); err != nil {
			t.Fatalf("RunUntilDone: %v", err)
		}
		if !m.Waiting {
			t.Fatalf("expected machine to wait on pass %d", i)
		}
	}
	queue.Push('x')
	if err := m.RunUntilDone(10); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}

	want := "INC IN OUT"
	if got := strings.Join(ops, " "); got != want {
		t.Errorf("trace = %q; want %q", got, want)
	}
}
