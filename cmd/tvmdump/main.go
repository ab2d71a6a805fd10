package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tapevm/pkg/compiler"
)

const testSource = `++>+++++[<+>-]<.`

// load compiles a source file, or decodes it if it is a compiled .tvm file.
func load(path string) (*compiler.Program, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".tvm") {
		p, err := compiler.Decode(data)
		return p, "", err
	}
	p, err := compiler.Compile(string(data))
	return p, string(data), err
}

func main() {
	src := testSource
	p, err := compiler.Compile(src)
	if len(os.Args) > 1 {
		p, src, err = load(os.Args[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if src != "" {
		fmt.Printf("Source:\n%s\n\n", src)
	}

	fmt.Printf("Instructions (%d)\n", p.Len())
	fmt.Print(compiler.Disassemble(p))
	fmt.Println()

	pairs := p.Pairs()
	fmt.Printf("Loops (%d)\n", len(pairs))
	for _, pair := range pairs {
		fmt.Printf("  %04d <-> %04d\n", pair[0], pair[1])
	}
	fmt.Println()

	canonical := compiler.Source(p)
	fmt.Printf("Canonical source (%d chars, %d instructions)\n%s\n", len(canonical), p.Len(), canonical)
}
