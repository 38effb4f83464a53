package main

import (
	"errors"
	"fmt"

	tcell "github.com/gdamore/tcell/v2"
)

var errPickerCancelled = errors.New("no device selected")

// enumerationResult carries a finished enumeration back to the render loop
type enumerationResult struct {
	names []string
	err   error
}

type pickerAction int

const (
	pickerNone pickerAction = iota
	pickerQuit
	pickerRefresh
	pickerChoose
)

// deviceChoices is what a selector offers: the enumerated names, or the
// placeholder when there is nothing to offer or the registry failed.
func deviceChoices(names []string, err error) []string {
	if err != nil || len(names) == 0 {
		return []string{placeholderDevice}
	}
	return names
}

// pickerState holds the device picker state
type pickerState struct {
	image         string
	devRoot       string
	choices       []string
	selectedIndex int
	loading       bool
	lastErr       error

	// Confirmation dialog for the device under the cursor
	confirming bool
	confirmYes bool
}

func newPickerState(image, devRoot string) *pickerState {
	return &pickerState{
		image:   image,
		devRoot: devRoot,
		choices: deviceChoices(nil, nil),
		loading: true,
	}
}

// apply installs a new snapshot, keeping the cursor on the same device when
// it is still present.
func (s *pickerState) apply(res enumerationResult) {
	current := s.choices[s.selectedIndex]

	s.loading = false
	s.lastErr = res.err
	s.choices = deviceChoices(res.names, res.err)
	s.selectedIndex = 0
	for i, name := range s.choices {
		if name == current {
			s.selectedIndex = i
			break
		}
	}
	if name, ok := s.selected(); !ok || name != current {
		s.confirming = false
	}
}

// selected returns the device under the cursor, unless it is the placeholder
func (s *pickerState) selected() (string, bool) {
	name := s.choices[s.selectedIndex]
	if name == placeholderDevice {
		return "", false
	}
	return name, true
}

func (s *pickerState) confirmMessage() string {
	name, _ := s.selected()
	return fmt.Sprintf("All data on %s will be destroyed. Continue?", devicePath(s.devRoot, name))
}

func (s *pickerState) handleConfirmKey(key tcell.Key, r rune) pickerAction {
	switch key {
	case tcell.KeyEscape:
		s.confirming = false
	case tcell.KeyCtrlC:
		return pickerQuit
	case tcell.KeyLeft, tcell.KeyRight, tcell.KeyTab:
		s.confirmYes = !s.confirmYes
	case tcell.KeyEnter:
		s.confirming = false
		if s.confirmYes {
			return pickerChoose
		}
	case tcell.KeyRune:
		switch r {
		case 'y', 'Y':
			s.confirming = false
			return pickerChoose
		case 'n', 'N':
			s.confirming = false
		}
	}
	return pickerNone
}

func (s *pickerState) handleKey(key tcell.Key, r rune) pickerAction {
	if s.confirming {
		return s.handleConfirmKey(key, r)
	}

	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return pickerQuit
	case tcell.KeyUp:
		if s.selectedIndex > 0 {
			s.selectedIndex--
		}
		return pickerNone
	case tcell.KeyDown:
		if s.selectedIndex < len(s.choices)-1 {
			s.selectedIndex++
		}
		return pickerNone
	case tcell.KeyEnter:
		if _, ok := s.selected(); ok && !s.loading {
			s.confirming = true
			s.confirmYes = false
		}
		return pickerNone
	case tcell.KeyRune:
		switch r {
		case 'q', 'Q':
			return pickerQuit
		case 'r', 'R':
			if s.loading {
				return pickerNone
			}
			return pickerRefresh
		}
	}
	return pickerNone
}

// runPicker shows the removable disks and returns the chosen name once the
// user has confirmed overwriting it. Enumeration runs off the render loop;
// results arrive as interrupt events.
func runPicker(reg Registry, devRoot, image string) (string, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return "", fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return "", fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorBlack))
	screen.Clear()

	state := newPickerState(image, devRoot)
	refresh := func() {
		state.loading = true
		go func() {
			names, err := listRemovableDisks(reg)
			_ = screen.PostEvent(tcell.NewEventInterrupt(enumerationResult{names: names, err: err}))
		}()
	}
	refresh()

	for {
		state.render(screen)
		screen.Show()

		switch ev := screen.PollEvent().(type) {
		case *tcell.EventInterrupt:
			if res, ok := ev.Data().(enumerationResult); ok {
				state.apply(res)
			}
		case *tcell.EventKey:
			switch state.handleKey(ev.Key(), ev.Rune()) {
			case pickerQuit:
				return "", errPickerCancelled
			case pickerRefresh:
				refresh()
			case pickerChoose:
				name, _ := state.selected()
				return name, nil
			}
		case *tcell.EventResize:
			screen.Sync()
		}
	}
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	width, _ := screen.Size()
	for i, ch := range text {
		if x+i >= width {
			break
		}
		screen.SetContent(x+i, y, ch, nil, style)
	}
}

func drawCentered(screen tcell.Screen, y int, text string, style tcell.Style) {
	width, _ := screen.Size()
	x := (width - len(text)) / 2
	if x < 0 {
		x = 0
	}
	drawText(screen, x, y, text, style)
}

func (s *pickerState) render(screen tcell.Screen) {
	screen.Clear()
	width, height := screen.Size()

	drawCentered(screen, 0, "=== Write Image ===", tcell.StyleDefault.Bold(true))
	if s.image != "" {
		drawText(screen, 0, 1, "Image: "+s.image, tcell.StyleDefault)
	}

	drawText(screen, 0, 3, "Device:", tcell.StyleDefault.Bold(true))
	y := 4
	for i, name := range s.choices {
		if y >= height-3 {
			break
		}

		style := tcell.StyleDefault
		prefix := "  "
		if i == s.selectedIndex {
			style = tcell.StyleDefault.
				Foreground(tcell.ColorBlack).
				Background(tcell.ColorWhite)
			prefix = "> "
		}
		drawText(screen, 0, y, prefix+name, style)
		y++
	}

	// Status line
	statusY := height - 2
	for x := 0; x < width; x++ {
		screen.SetContent(x, statusY, ' ', nil, tcell.StyleDefault.Reverse(true))
	}
	var status string
	switch {
	case s.loading:
		status = "Scanning for removable disks..."
	case s.lastErr != nil:
		status = fmt.Sprintf("Cannot list devices: %v", s.lastErr)
	case s.choices[0] == placeholderDevice:
		status = "No removable disks found"
	default:
		status = fmt.Sprintf("%d removable disk(s)", len(s.choices))
	}
	drawText(screen, 0, statusY, status, tcell.StyleDefault.Reverse(true))

	drawCentered(screen, height-1, "↑↓: Navigate | Enter: Write | R: Refresh | Q/Ctrl+C: Quit", tcell.StyleDefault.Dim(true))

	if s.confirming {
		renderConfirmDialog(screen, s.confirmMessage(), s.confirmYes)
	}
}
