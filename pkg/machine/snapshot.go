package machine

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"tapevm/pkg/compiler"
)

// snapshotState is the JSON-serializable part of a machine snapshot.
type snapshotState struct {
	RunID   string    `json:"run_id"`
	SavedAt time.Time `json:"saved_at"`
	PC      int       `json:"pc"`
	Ptr     int       `json:"ptr"`
	Steps   uint64    `json:"steps"`
	Halted  bool      `json:"halted"`
	Waiting bool      `json:"waiting"`
	EOF     string    `json:"eof"`
	TapeLen int       `json:"tape_len"`
}

const (
	snapshotStateEntry   = "state.json"
	snapshotTapeEntry    = "tape.bin"
	snapshotProgramEntry = "program.tvm"
)

// HibernateToBytes serialises the program, tape and registers into an
// in-memory ZIP archive.
func (m *Machine) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := snapshotState{
		RunID:   m.RunID,
		SavedAt: time.Now().UTC(),
		PC:      m.PC,
		Ptr:     m.Ptr,
		Steps:   m.Steps,
		Halted:  m.Halted,
		Waiting: m.Waiting,
		EOF:     m.EOF.String(),
		TapeLen: m.Tape.Len(),
	}
	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := writeZipEntry(zw, snapshotStateEntry, jsonData); err != nil {
		return nil, err
	}

	if err := writeZipEntry(zw, snapshotTapeEntry, m.Tape.Cells()); err != nil {
		return nil, err
	}

	prog, err := compiler.Encode(m.Program)
	if err != nil {
		return nil, fmt.Errorf("encode program: %w", err)
	}
	if err := writeZipEntry(zw, snapshotProgramEntry, prog); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes replaces the machine's program and execution state with
// a snapshot produced by HibernateToBytes. I/O bindings and Trace are kept.
func (m *Machine) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, snapshotStateEntry)
	if err != nil {
		return err
	}
	var state snapshotState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	eof, err := ParseEOFMode(state.EOF)
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}

	progData, err := readZipEntry(fileMap, snapshotProgramEntry)
	if err != nil {
		return err
	}
	prog, err := compiler.Decode(progData)
	if err != nil {
		return err
	}

	cells, err := readZipEntry(fileMap, snapshotTapeEntry)
	if err != nil {
		return err
	}
	if len(cells) != state.TapeLen {
		return fmt.Errorf("snapshot tape has %d cells, state says %d", len(cells), state.TapeLen)
	}
	tape := tapeFromCells(cells)

	if state.Ptr < 0 || state.Ptr >= tape.Len() {
		return fmt.Errorf("snapshot pointer %d outside tape of %d cells", state.Ptr, tape.Len())
	}
	if state.PC < 0 || state.PC > prog.Len() {
		return fmt.Errorf("snapshot pc %d outside program of %d instructions", state.PC, prog.Len())
	}

	m.Program = prog
	m.Tape = tape
	m.Ptr = state.Ptr
	m.PC = state.PC
	m.Steps = state.Steps
	m.Halted = state.Halted
	m.Waiting = state.Waiting
	m.EOF = eof
	m.RunID = state.RunID
	return nil
}

// HibernateToFile writes the snapshot archive to path.
func (m *Machine) HibernateToFile(path string) error {
	data, err := m.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a snapshot archive from path and restores it.
func (m *Machine) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
