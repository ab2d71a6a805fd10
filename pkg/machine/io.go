package machine

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputPending is returned by a non-blocking input source that has no
// byte ready yet. The machine treats it as "wait", not as end of input.
var ErrInputPending = errors.New("input pending")

// EOFMode selects what Input does once the input source is exhausted.
type EOFMode uint8

const (
	// EOFError aborts the run with ErrInputExhausted.
	EOFError EOFMode = iota
	// EOFUnchanged leaves the current cell as it was.
	EOFUnchanged
	// EOFZero stores 0 in the current cell.
	EOFZero
)

var eofModeNames = [...]string{
	EOFError:     "error",
	EOFUnchanged: "unchanged",
	EOFZero:      "zero",
}

func (m EOFMode) String() string {
	if int(m) < len(eofModeNames) {
		return eofModeNames[m]
	}
	return fmt.Sprintf("EOFMode(%d)", uint8(m))
}

// ParseEOFMode parses the name of an EOFMode. The empty string selects
// EOFError.
func ParseEOFMode(s string) (EOFMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return EOFError, nil
	case "unchanged":
		return EOFUnchanged, nil
	case "zero":
		return EOFZero, nil
	}
	return EOFError, fmt.Errorf("unknown eof mode %q (want error, unchanged or zero)", s)
}

// writerSink adapts an io.Writer that is not an io.ByteWriter.
type writerSink struct {
	w   io.Writer
	buf [1]byte
}

// NewWriterSink returns w as an io.ByteWriter, writing each byte through
// immediately.
func NewWriterSink(w io.Writer) io.ByteWriter {
	if bw, ok := w.(io.ByteWriter); ok {
		return bw
	}
	return &writerSink{w: w}
}

func (s *writerSink) WriteByte(b byte) error {
	s.buf[0] = b
	_, err := s.w.Write(s.buf[:])
	return err
}

// InputQueue is a non-blocking input source fed by the host, for front-ends
// that cannot block inside Step. Reads on an empty queue return
// ErrInputPending until Close is called, after which they return io.EOF.
type InputQueue struct {
	buf    []byte
	closed bool
}

// Push appends bytes to the queue.
func (q *InputQueue) Push(b ...byte) {
	q.buf = append(q.buf, b...)
}

// Close marks the end of input. Bytes already queued can still be read.
func (q *InputQueue) Close() {
	q.closed = true
}

// Closed reports whether Close has been called.
func (q *InputQueue) Closed() bool {
	return q.closed
}

// Len returns the number of queued bytes.
func (q *InputQueue) Len() int {
	return len(q.buf)
}

func (q *InputQueue) ReadByte() (byte, error) {
	if len(q.buf) == 0 {
		if q.closed {
			return 0, io.EOF
		}
		return 0, ErrInputPending
	}
	b := q.buf[0]
	q.buf = q.buf[1:]
	return b, nil
}
