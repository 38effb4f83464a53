package main

import (
	tcell "github.com/gdamore/tcell/v2"
)

// drawBox draws a bordered box filled with the reversed background, clipped to the screen
func drawBox(screen tcell.Screen, boxX, boxY, boxWidth, boxHeight int) (int, int, int, int) {
	width, height := screen.Size()

	// Ensure box fits on screen
	if boxX < 0 {
		boxX = 0
	}
	if boxY < 0 {
		boxY = 0
	}
	if boxX+boxWidth > width {
		boxWidth = width - boxX
	}
	if boxY+boxHeight > height {
		boxHeight = height - boxY
	}

	border := tcell.StyleDefault.Bold(true)
	for y := boxY; y < boxY+boxHeight; y++ {
		for x := boxX; x < boxX+boxWidth; x++ {
			switch {
			case y == boxY && x == boxX:
				screen.SetContent(x, y, '┌', nil, border)
			case y == boxY && x == boxX+boxWidth-1:
				screen.SetContent(x, y, '┐', nil, border)
			case y == boxY+boxHeight-1 && x == boxX:
				screen.SetContent(x, y, '└', nil, border)
			case y == boxY+boxHeight-1 && x == boxX+boxWidth-1:
				screen.SetContent(x, y, '┘', nil, border)
			case y == boxY || y == boxY+boxHeight-1:
				screen.SetContent(x, y, '─', nil, border)
			case x == boxX || x == boxX+boxWidth-1:
				screen.SetContent(x, y, '│', nil, border)
			default:
				screen.SetContent(x, y, ' ', nil, tcell.StyleDefault.Reverse(true))
			}
		}
	}
	return boxX, boxY, boxWidth, boxHeight
}

// drawInBox writes text centered on row y, never touching the right border
func drawInBox(screen tcell.Screen, boxX, boxWidth, y int, text string, style tcell.Style) {
	x := boxX + (boxWidth-len(text))/2
	if x <= boxX {
		x = boxX + 1
	}
	for i, ch := range text {
		if x+i >= boxX+boxWidth-1 {
			break
		}
		screen.SetContent(x+i, y, ch, nil, style)
	}
}

// renderConfirmDialog renders the yes/no dialog shown before a device is overwritten
func renderConfirmDialog(screen tcell.Screen, message string, yes bool) {
	width, height := screen.Size()

	dialogWidth := 60
	if len(message)+6 > dialogWidth {
		dialogWidth = len(message) + 6
	}
	dialogHeight := 7

	// Dim whatever is behind the dialog
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			screen.SetContent(x, y, ' ', nil, tcell.StyleDefault.Dim(true))
		}
	}

	dialogX, dialogY, dialogWidth, dialogHeight := drawBox(screen,
		(width-dialogWidth)/2, (height-dialogHeight)/2, dialogWidth, dialogHeight)

	drawInBox(screen, dialogX, dialogWidth, dialogY+2, message, tcell.StyleDefault.Reverse(true))

	selected := tcell.StyleDefault.
		Foreground(tcell.ColorBlack).
		Background(tcell.ColorWhite).
		Reverse(true)
	yesStyle, noStyle := tcell.StyleDefault.Reverse(true), selected
	yesMark, noMark := "[ ] Yes", "[X] No"
	if yes {
		yesStyle, noStyle = selected, tcell.StyleDefault.Reverse(true)
		yesMark, noMark = "[X] Yes", "[ ] No"
	}
	buttonY := dialogY + 4
	drawText(screen, dialogX+dialogWidth/2-10, buttonY, yesMark, yesStyle)
	drawText(screen, dialogX+dialogWidth/2+5, buttonY, noMark, noStyle)

	drawInBox(screen, dialogX, dialogWidth, dialogY+dialogHeight-2,
		"←→: Toggle  Enter: Confirm  Esc: Cancel", tcell.StyleDefault.Dim(true).Reverse(true))
}
