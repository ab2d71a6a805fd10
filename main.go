package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"tapevm/pkg/compiler"
	"tapevm/pkg/machine"
	"tapevm/pkg/utils"
)

var log = commonlog.GetLogger("tapevm")

func main() {
	inPath := flag.String("in", "", "input source file path")
	outPath := flag.String("out", "", "output program file path (default: input with .tvm extension)")
	runProgram := flag.Bool("run", false, "run the compiled program file")
	runBinPath := flag.String("run-bin", "", "run an existing compiled program file")
	eof := flag.String("eof", "error", "input behaviour at end of input: error, unchanged or zero")
	maxSteps := flag.Uint64("max-steps", 0, "abort after this many instructions (0 = unlimited)")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}
	eofMode, err := machine.ParseEOFMode(*eof)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	compiledOutput := ""
	if *inPath != "" {
		src, _, _, err := utils.ReadSource(*inPath)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		prog, err := compiler.Compile(src)
		if err != nil {
			log.Errorf("compilation failed: %v", err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = utils.ReplaceExt(*inPath, ".tvm")
		}

		if err := writeProgram(output, prog); err != nil {
			log.Errorf("failed to write program file %q: %v", output, err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "compiled %d instructions -> %s\n", prog.Len(), output)
		compiledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to compile, -run to run compiled output, or -run-bin <file> to run an existing program file")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if compiledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = compiledOutput
	default:
		return
	}

	if err := runProgramFile(runTarget, eofMode, *maxSteps); err != nil {
		log.Errorf("run failed for %q: %v", runTarget, err)
		os.Exit(1)
	}
}

func writeProgram(path string, p *compiler.Program) error {
	data, err := compiler.Encode(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readProgram(path string) (*compiler.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return compiler.Decode(data)
}

func runProgramFile(path string, eof machine.EOFMode, maxSteps uint64) error {
	prog, err := readProgram(path)
	if err != nil {
		return err
	}

	vm := machine.New(prog)
	vm.EOF = eof
	vm.Input = bufio.NewReader(os.Stdin)
	if err := vm.RunLimit(maxSteps); err != nil {
		return err
	}

	log.Infof(
		"run complete (%s): PC=%d PTR=%d CELL=%d STEPS=%d TAPE=%d",
		path,
		vm.PC,
		vm.Ptr,
		vm.Cell(),
		vm.Steps,
		vm.Tape.Len(),
	)
	return nil
}
