package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"tapevm/pkg/compiler"
	"tapevm/pkg/config"
	"tapevm/pkg/machine"
	"tapevm/pkg/utils"
)

var log = commonlog.GetLogger("tapevm.console")

type options struct {
	configPath string
	dump       bool
	eof        string
	maxSteps   uint64
	noCoalesce bool
	trace      bool
	verbosity  int
	echo       bool
	timing     bool
	snapshot   string
	resume     string
}

func parseFlags() (*options, []string) {
	o := &options{}
	flag.StringVar(&o.configPath, "config", "", "configuration file (default: nearest "+config.FileName+")")
	flag.BoolVar(&o.dump, "dump", false, "print the compiled instruction listing before running")
	flag.StringVar(&o.eof, "eof", "", "input behaviour at end of input: error, unchanged or zero")
	flag.Uint64Var(&o.maxSteps, "max-steps", 0, "abort after this many instructions (0 = unlimited)")
	flag.BoolVar(&o.noCoalesce, "no-coalesce", false, "do not merge runs of pointer moves")
	flag.BoolVar(&o.trace, "trace", false, "log every instruction (implies -v 2)")
	flag.IntVar(&o.verbosity, "v", 0, "log verbosity")
	flag.BoolVar(&o.echo, "echo", false, "print the source before running")
	flag.BoolVar(&o.timing, "time", false, "report compile and run durations")
	flag.StringVar(&o.snapshot, "snapshot", "", "write a snapshot here if the run aborts")
	flag.StringVar(&o.resume, "resume", "", "resume from a snapshot instead of compiling a source file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] program.b\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	return o, flag.Args()
}

// loadConfig returns the configuration with command-line flags applied on top.
func loadConfig(o *options, startDir string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.FindAndLoad(startDir)
	}
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "eof":
			cfg.Run.EOF = o.eof
		case "max-steps":
			cfg.Run.MaxSteps = o.maxSteps
		case "no-coalesce":
			cfg.Run.Coalesce = !o.noCoalesce
		case "v":
			cfg.Log.Verbosity = o.verbosity
		}
	})
	if o.trace && cfg.Log.Verbosity < 2 {
		cfg.Log.Verbosity = 2
	}
	return cfg, cfg.Validate()
}

func configureLogging(cfg *config.Config) {
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

func main() {
	o, args := parseFlags()
	if (len(args) != 1 && o.resume == "") || len(args) > 1 {
		flag.Usage()
		os.Exit(2)
	}

	startDir := "."
	if len(args) == 1 {
		startDir = filepath.Dir(args[0])
	}
	cfg, err := loadConfig(o, startDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	configureLogging(cfg)
	if cfg.Path != "" {
		log.Infof("using config %s", cfg.Path)
	}

	var vm *machine.Machine
	if o.resume != "" {
		vm = machine.New(nil)
		if err := vm.RestoreFromFile(o.resume); err != nil {
			log.Errorf("resume %s: %v", o.resume, err)
			os.Exit(1)
		}
		if o.eof != "" {
			vm.EOF = cfg.EOFMode()
		}
		log.Infof("run %s resumed at pc=%d after %d steps", vm.RunID, vm.PC, vm.Steps)
	} else {
		vm, err = compileSource(args[0], cfg, o)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		vm.EOF = cfg.EOFMode()
	}

	if o.dump {
		fmt.Print(compiler.Disassemble(vm.Program))
	}
	if o.trace {
		vm.Trace = traceInstruction
	}
	vm.Input = bufio.NewReader(os.Stdin)

	start := time.Now()
	err = vm.RunLimit(cfg.Run.MaxSteps)
	if o.timing {
		log.Noticef("run took %s (%d steps)", time.Since(start), vm.Steps)
	}
	if err != nil {
		if errors.Is(err, machine.ErrStepLimit) {
			log.Errorf("run %s: %v after %d steps", vm.RunID, err, vm.Steps)
		} else {
			log.Errorf("run %s: %v", vm.RunID, err)
		}
		if o.snapshot != "" {
			if serr := vm.HibernateToFile(o.snapshot); serr != nil {
				log.Errorf("snapshot: %v", serr)
			} else {
				log.Noticef("snapshot written to %s", o.snapshot)
			}
		}
		os.Exit(1)
	}
	log.Infof("run %s halted after %d steps, tape %d cells", vm.RunID, vm.Steps, vm.Tape.Len())
}

func compileSource(path string, cfg *config.Config, o *options) (*machine.Machine, error) {
	src, fullPath, _, err := utils.ReadSource(path)
	if err != nil {
		return nil, err
	}
	if o.echo {
		fmt.Printf("----%s----\n%s\n\n", fullPath, src)
	}

	start := time.Now()
	prog, err := compiler.CompileWithOptions(src, compiler.Options{Coalesce: cfg.Run.Coalesce})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fullPath, err)
	}
	if o.timing {
		log.Noticef("compile took %s (%d instructions)", time.Since(start), prog.Len())
	}
	return machine.New(prog), nil
}

func traceInstruction(m *machine.Machine, ins compiler.Instruction) {
	log.Debugf("pc=%04d %-14s ptr=%d cell=%d", m.PC, ins, m.Ptr, m.Cell())
}
