// Package display animates a genetic algorithm population in the terminal.
package display

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

const (
	pointRune  = '•'
	markerRune = 'X'

	minWidth  = 12
	minHeight = 6
)

var (
	frameStyle  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	pointStyle  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	markerStyle = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	labelStyle  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkRed)
)

// Display draws the population as a scatter over [0,10]² with the global
// maximum marked, one frame per generation.
type Display struct {
	screen tcell.Screen
	marker optimization.Individual
}

// New wraps an initialized screen.
func New(screen tcell.Screen) (*Display, error) {
	ref, err := optimization.GlobalMaximum()
	if err != nil {
		return nil, err
	}
	return &Display{screen: screen, marker: ref.Individual}, nil
}

// Draw renders one frame.
func (d *Display) Draw(population []optimization.Individual, generation int) {
	d.screen.Clear()

	w, h := d.screen.Size()
	d.text(0, 0, fmt.Sprintf(" Step: %d ", generation), labelStyle)

	if w >= minWidth && h >= minHeight {
		d.frame(w, h)
		for _, ind := range population {
			x, y := d.cell(ind, w, h)
			d.screen.SetContent(x, y, pointRune, nil, pointStyle)
		}
		x, y := d.cell(d.marker, w, h)
		d.screen.SetContent(x, y, markerRune, nil, markerStyle)
	}

	d.screen.Show()
}

// Close restores the terminal.
func (d *Display) Close() {
	d.screen.Fini()
}

// cell maps a domain point into the area inside the frame, y growing upward
func (d *Display) cell(ind optimization.Individual, w, h int) (int, int) {
	innerW, innerH := w-2, h-3
	span := optimization.Upper - optimization.Lower

	col := 1 + int(math.Round((ind.X-optimization.Lower)/span*float64(innerW-1)))
	row := h - 2 - int(math.Round((ind.Y-optimization.Lower)/span*float64(innerH-1)))
	return col, row
}

// frame draws a box from row 1 to the last row
func (d *Display) frame(w, h int) {
	top, bottom := 1, h-1
	for x := 1; x < w-1; x++ {
		d.screen.SetContent(x, top, tcell.RuneHLine, nil, frameStyle)
		d.screen.SetContent(x, bottom, tcell.RuneHLine, nil, frameStyle)
	}
	for y := top + 1; y < bottom; y++ {
		d.screen.SetContent(0, y, tcell.RuneVLine, nil, frameStyle)
		d.screen.SetContent(w-1, y, tcell.RuneVLine, nil, frameStyle)
	}
	d.screen.SetContent(0, top, tcell.RuneULCorner, nil, frameStyle)
	d.screen.SetContent(w-1, top, tcell.RuneURCorner, nil, frameStyle)
	d.screen.SetContent(0, bottom, tcell.RuneLLCorner, nil, frameStyle)
	d.screen.SetContent(w-1, bottom, tcell.RuneLRCorner, nil, frameStyle)
}

func (d *Display) text(x, y int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		d.screen.SetContent(x+i, y, r, nil, style)
	}
}

// WatchQuit polls the screen for Esc, Ctrl-C or q and closes the returned
// channel when one arrives or the screen is finalized.
func WatchQuit(screen tcell.Screen) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		defer close(quit)
		for {
			switch ev := screen.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}()
	return quit
}
