package teachtiles

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// upper half block, fg paints the top LED row and bg the one below
const halfBlock = '▀'

// TerminalPanel draws the LED matrix in a terminal,
// two LED rows per character cell
type TerminalPanel struct {
	MU     sync.Mutex
	Screen tcell.Screen
	Title  string
	Status func() string       // footer line, optional
	Submit func(Command) error // keyboard commands go here
	Quit   func()

	quitOnce sync.Once
}

// GetTTY opens and initialises the terminal
func GetTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)

	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("could not get new screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize screen: %w", err)
	}
	s.SetStyle(defStyle)
	s.EnablePaste()
	s.Clear()

	return s, nil
}

func NewTerminalPanel(s tcell.Screen, title string) *TerminalPanel {
	return &TerminalPanel{Screen: s, Title: title}
}

func cellColor(c RGB) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// Present redraws the whole screen from the frame
func (tp *TerminalPanel) Present(f Frame) error {
	tp.MU.Lock()
	defer tp.MU.Unlock()

	if tp.Screen == nil {
		return fmt.Errorf("no screen")
	}

	g := f.Grid
	rows := (g.Height + 1) / 2
	tp.Screen.Clear()
	tp.DrawViewBorder(g.Width+1, rows+1)
	if tp.Title != "" {
		tp.DrawText(2, 0, g.Width, 0, " "+tp.Title+" ")
	}

	for y := 0; y < g.Height; y += 2 {
		for x := 0; x < g.Width; x++ {
			upper := f.At(x, y)
			lower := Black
			if y+1 < g.Height {
				lower = f.At(x, y+1)
			}
			style := tcell.StyleDefault.Foreground(cellColor(upper)).Background(cellColor(lower))
			tp.Screen.SetContent(1+x, 1+y/2, halfBlock, nil, style)
		}
	}

	footer := "g=glyph | d=demo | t=test | c=clear | esc=quit"
	if tp.Status != nil {
		footer = tp.Status() + " | " + footer
	}
	tp.DrawText(1, rows+2, g.Width+2, rows+3, footer)

	tp.Screen.Show()
	return nil
}

func (tp *TerminalPanel) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		tp.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

func (tp *TerminalPanel) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	tp.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		tp.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
		tp.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
	tp.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		tp.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		tp.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	tp.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	tp.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
}

// HandleKey maps one key press to a command, reporting whether it was used
func (tp *TerminalPanel) HandleKey(ev *tcell.EventKey) bool {
	// Catch quit and exit
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		tp.exit()
		return true
	}

	var cmd Command
	switch ev.Rune() {
	case 'g':
		cmd = Command{Kind: CmdGlyph}
	case 'd':
		cmd = Command{Kind: CmdDemo}
	case 't':
		cmd = Command{Kind: CmdDiagnostic}
	case 'c':
		cmd = Command{Kind: CmdClearBitmap}
	default:
		return false
	}
	if tp.Submit != nil {
		if err := tp.Submit(cmd); err != nil {
			slog.Warn("Key command dropped", slog.String("command", cmd.Kind.String()), slog.Any("error", err))
		}
	}
	return true
}

// HandleEvents blocks reading the terminal until the screen is finalised
func (tp *TerminalPanel) HandleEvents() {
	for {
		ev := tp.Screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			tp.Screen.Sync()
		case *tcell.EventKey:
			tp.HandleKey(ev)
		}
	}
}

func (tp *TerminalPanel) exit() {
	tp.quitOnce.Do(func() {
		slog.Info("Terminal quit requested")
		if tp.Quit != nil {
			tp.Quit()
		}
	})
}

// Close releases the terminal
func (tp *TerminalPanel) Close() {
	tp.MU.Lock()
	defer tp.MU.Unlock()
	if tp.Screen != nil {
		tp.Screen.Fini()
	}
}
