// Package grid lays out a strip of tape cells on a fixed-width screen grid.
package grid

// GetGridCoords returns the column and row of the index-th cell in a grid
// that is cols cells wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Window picks which cells of a tape of length n are shown in a view of size
// cells so that cell ptr is visible, keeping it centred when possible. It
// returns the half-open range [start, end).
func Window(ptr, n, size int) (start, end int) {
	if size <= 0 || n <= 0 {
		return 0, 0
	}
	if n <= size {
		return 0, n
	}
	start = ptr - size/2
	if start < 0 {
		start = 0
	}
	if start+size > n {
		start = n - size
	}
	return start, start + size
}
