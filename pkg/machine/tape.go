package machine

// minSlack is the smallest amount of free space reserved on the side a tape
// grows towards when it has to reallocate.
const minSlack = 16

// Tape is a row of byte cells that can grow at either end. Cells are
// addressed relative to the current leftmost cell; growing left shifts every
// existing index up by the number of cells added.
//
// The cells live in buf[head:tail]; the space before head and after tail is
// preallocated zeroes, so most growth does not copy.
type Tape struct {
	buf  []byte
	head int
	tail int
}

// NewTape returns a tape holding a single zero cell.
func NewTape() *Tape {
	return &Tape{buf: make([]byte, 1), head: 0, tail: 1}
}

// tapeFromCells returns a tape holding a copy of cells.
func tapeFromCells(cells []byte) *Tape {
	if len(cells) == 0 {
		return NewTape()
	}
	buf := make([]byte, len(cells))
	copy(buf, cells)
	return &Tape{buf: buf, head: 0, tail: len(buf)}
}

// Len returns the number of cells on the tape. It is always at least 1.
func (t *Tape) Len() int {
	return t.tail - t.head
}

// Get returns cell i.
func (t *Tape) Get(i int) byte {
	return t.buf[t.head+i]
}

// Set stores v in cell i.
func (t *Tape) Set(i int, v byte) {
	t.buf[t.head+i] = v
}

// Cells returns a copy of the tape contents.
func (t *Tape) Cells() []byte {
	out := make([]byte, t.Len())
	copy(out, t.buf[t.head:t.tail])
	return out
}

// GrowLeft prepends n zero cells.
func (t *Tape) GrowLeft(n int) {
	if n <= 0 {
		return
	}
	if n > t.head {
		size := t.Len()
		slack := max(n, size, minSlack)
		buf := make([]byte, slack+size+(len(t.buf)-t.tail))
		copy(buf[slack:], t.buf[t.head:t.tail])
		t.buf = buf
		t.head = slack
		t.tail = slack + size
	}
	t.head -= n
	clear(t.buf[t.head : t.head+n])
}

// GrowRight appends n zero cells.
func (t *Tape) GrowRight(n int) {
	if n <= 0 {
		return
	}
	if t.tail+n > len(t.buf) {
		size := t.Len()
		slack := max(n, size, minSlack)
		buf := make([]byte, t.head+size+slack)
		copy(buf[t.head:], t.buf[t.head:t.tail])
		t.buf = buf
	}
	clear(t.buf[t.tail : t.tail+n])
	t.tail += n
}
