package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/image/font/basicfont"

	"tapevm/pkg/compiler"
	"tapevm/pkg/config"
	"tapevm/pkg/grid"
	"tapevm/pkg/machine"
	"tapevm/pkg/utils"
)

const (
	screenWidth  = 640
	screenHeight = 480

	cellWidth   = 36
	cellHeight  = 20
	lineHeight  = 16
	tapeRows    = 8
	outputLines = 10
)

var log = commonlog.GetLogger("tapevm.desktop")

var (
	face = text.NewGoXFace(basicfont.Face7x13)

	colorBackground = color.RGBA{0x1D, 0x2B, 0x53, 0xFF}
	colorCell       = color.RGBA{0x5F, 0x57, 0x4F, 0xFF}
	colorPointer    = color.RGBA{0xFF, 0xA3, 0x00, 0xFF}
	colorText       = color.RGBA{0xFF, 0xF1, 0xE8, 0xFF}
	colorError      = color.RGBA{0xFF, 0x00, 0x4D, 0xFF}
)

type Game struct {
	vm     *machine.Machine
	input  *machine.InputQueue
	output *bytes.Buffer

	stepsPerFrame int
	columns       int

	paused bool
	err    error
}

func newGame(prog *compiler.Program, cfg *config.Config) *Game {
	g := &Game{
		vm:            machine.New(prog),
		input:         &machine.InputQueue{},
		output:        new(bytes.Buffer),
		stepsPerFrame: cfg.Desktop.StepsPerFrame,
		columns:       cfg.Desktop.Columns,
	}
	g.vm.EOF = cfg.EOFMode()
	g.vm.Input = g.input
	g.vm.Output = g.output
	return g
}

// advance runs one frame's worth of instructions.
func (g *Game) advance() {
	if g.paused || g.err != nil || g.vm.Halted {
		return
	}
	if err := g.vm.RunUntilDone(g.stepsPerFrame); err != nil {
		g.err = err
		log.Errorf("run %s: %v", g.vm.RunID, err)
		return
	}
	if g.vm.Halted {
		log.Infof("run %s halted after %d steps", g.vm.RunID, g.vm.Steps)
	}
}

func (g *Game) status() string {
	state := "running"
	switch {
	case g.err != nil:
		state = "error: " + g.err.Error()
	case g.vm.Halted:
		state = "halted"
	case g.vm.Waiting:
		state = "waiting for input"
		if g.input.Closed() {
			state = "input closed"
		}
	case g.paused:
		state = "paused"
	}
	return fmt.Sprintf("pc %04d/%04d  ptr %d  tape %d  steps %d  %s",
		g.vm.PC, g.vm.Program.Len(), g.vm.Ptr, g.vm.Tape.Len(), g.vm.Steps, state)
}

// outputTail returns the last n lines of program output.
func (g *Game) outputTail(n int) string {
	lines := strings.Split(g.output.String(), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.paused = !g.paused
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl)
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyD) {
		g.input.Close()
	}
	if !ctrl && !g.input.Closed() {
		for _, r := range ebiten.AppendInputChars(nil) {
			if r < 0x80 {
				g.input.Push(byte(r))
			}
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			g.input.Push('\n')
		}
	}

	g.advance()
	return nil
}

func drawText(screen *ebiten.Image, s string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	op.LineSpacing = lineHeight
	text.Draw(screen, s, face, op)
}

func (g *Game) drawTape(screen *ebiten.Image, top float64) {
	start, end := grid.Window(g.vm.Ptr, g.vm.Tape.Len(), g.columns*tapeRows)
	for i := start; i < end; i++ {
		x, y := grid.GetGridCoords(i-start, g.columns)
		px := float32(8 + x*cellWidth)
		py := float32(top) + float32(y*cellHeight)

		clr := colorCell
		if i == g.vm.Ptr {
			clr = colorPointer
		}
		vector.DrawFilledRect(screen, px, py, cellWidth-4, cellHeight-4, clr, false)
		drawText(screen, fmt.Sprintf("%02X", g.vm.Tape.Get(i)), float64(px)+9, float64(py)+1, colorText)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)

	statusColor := color.Color(colorText)
	if g.err != nil {
		statusColor = colorError
	}
	drawText(screen, g.status(), 8, 4, statusColor)

	g.drawTape(screen, 28)

	outTop := 28 + float64(tapeRows*cellHeight) + 12
	drawText(screen, "output:", 8, outTop, colorText)
	drawText(screen, g.outputTail(outputLines), 8, outTop+lineHeight, colorText)

	drawText(screen, "type to feed input   enter: newline   ctrl+d: end input   tab: pause   esc: quit", 8, screenHeight-lineHeight-4, colorCell)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	configPath := flag.String("config", "", "configuration file (default: nearest "+config.FileName+")")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [flags] program.b")
		os.Exit(2)
	}

	src, fullPath, baseDir, err := utils.ReadSource(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FindAndLoad(baseDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *verbosity > cfg.Log.Verbosity {
		cfg.Log.Verbosity = *verbosity
	}
	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	prog, err := compiler.CompileWithOptions(src, compiler.Options{Coalesce: cfg.Run.Coalesce})
	if err != nil {
		log.Errorf("%s: %v", fullPath, err)
		os.Exit(1)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle(cfg.Desktop.Title + " - " + fullPath)

	game := newGame(prog, cfg)
	log.Infof("run %s started: %d instructions", game.vm.RunID, prog.Len())
	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
