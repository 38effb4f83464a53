package main

import (
	"errors"
	"testing"

	tcell "github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceChoices(t *testing.T) {
	assert.Equal(t, []string{"--"}, deviceChoices(nil, nil))
	assert.Equal(t, []string{"--"}, deviceChoices([]string{}, nil))
	assert.Equal(t, []string{"--"}, deviceChoices(nil, ErrRegistryUnavailable))
	assert.Equal(t, []string{"sdb", "sdc"}, deviceChoices([]string{"sdb", "sdc"}, nil))
}

func TestPickerStartsLoadingWithPlaceholder(t *testing.T) {
	s := newPickerState("image.img", "/dev")
	assert.True(t, s.loading)

	_, ok := s.selected()
	assert.False(t, ok)
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyEnter, 0))
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyRune, 'r'))
}

func TestPickerNavigationAndChoose(t *testing.T) {
	s := newPickerState("", "/dev")
	s.apply(enumerationResult{names: []string{"sdb", "sdc", "mmcblk0"}})
	assert.False(t, s.loading)

	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyUp, 0))
	assert.Equal(t, 0, s.selectedIndex)

	s.handleKey(tcell.KeyDown, 0)
	s.handleKey(tcell.KeyDown, 0)
	s.handleKey(tcell.KeyDown, 0)
	assert.Equal(t, 2, s.selectedIndex)

	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyEnter, 0))
	assert.True(t, s.confirming)
	assert.Equal(t, "All data on /dev/mmcblk0 will be destroyed. Continue?", s.confirmMessage())

	assert.Equal(t, pickerChoose, s.handleKey(tcell.KeyRune, 'y'))
	name, ok := s.selected()
	assert.True(t, ok)
	assert.Equal(t, "mmcblk0", name)
}

func TestPickerConfirmDialog(t *testing.T) {
	s := newPickerState("", "/dev")
	s.apply(enumerationResult{names: []string{"sdb"}})

	// Defaults to No
	s.handleKey(tcell.KeyEnter, 0)
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyEnter, 0))
	assert.False(t, s.confirming)

	s.handleKey(tcell.KeyEnter, 0)
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyEscape, 0))
	assert.False(t, s.confirming)

	s.handleKey(tcell.KeyEnter, 0)
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyRune, 'q'))
	assert.True(t, s.confirming)
	s.handleKey(tcell.KeyLeft, 0)
	assert.True(t, s.confirmYes)
	assert.Equal(t, pickerChoose, s.handleKey(tcell.KeyEnter, 0))

	s.handleKey(tcell.KeyEnter, 0)
	assert.Equal(t, pickerQuit, s.handleKey(tcell.KeyCtrlC, 0))
}

func TestPickerConfirmCancelledWhenDeviceGoes(t *testing.T) {
	s := newPickerState("", "/dev")
	s.apply(enumerationResult{names: []string{"sdb", "sdc"}})
	s.handleKey(tcell.KeyDown, 0)
	s.handleKey(tcell.KeyEnter, 0)
	require.True(t, s.confirming)

	s.apply(enumerationResult{names: []string{"sdb", "sdc", "sdd"}})
	assert.True(t, s.confirming)

	s.apply(enumerationResult{names: []string{"sdb"}})
	assert.False(t, s.confirming)
}

func TestPickerKeys(t *testing.T) {
	s := newPickerState("", "/dev")
	s.apply(enumerationResult{names: []string{"sdb"}})

	assert.Equal(t, pickerRefresh, s.handleKey(tcell.KeyRune, 'r'))
	assert.Equal(t, pickerRefresh, s.handleKey(tcell.KeyRune, 'R'))
	assert.Equal(t, pickerQuit, s.handleKey(tcell.KeyRune, 'q'))
	assert.Equal(t, pickerQuit, s.handleKey(tcell.KeyEscape, 0))
	assert.Equal(t, pickerQuit, s.handleKey(tcell.KeyCtrlC, 0))
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyRune, 'x'))
}

func TestPickerRefreshKeepsSelection(t *testing.T) {
	s := newPickerState("", "/dev")
	s.apply(enumerationResult{names: []string{"sdb", "sdc"}})
	s.handleKey(tcell.KeyDown, 0)

	s.apply(enumerationResult{names: []string{"sda", "sdb", "sdc"}})
	name, ok := s.selected()
	assert.True(t, ok)
	assert.Equal(t, "sdc", name)

	s.apply(enumerationResult{names: []string{"sda"}})
	name, _ = s.selected()
	assert.Equal(t, "sda", name)
}

func TestPickerEnumerationFailure(t *testing.T) {
	s := newPickerState("", "/dev")
	s.apply(enumerationResult{names: []string{"sdb"}})

	failure := errors.New("permission denied")
	s.apply(enumerationResult{err: failure})
	assert.Equal(t, []string{placeholderDevice}, s.choices)
	assert.Equal(t, failure, s.lastErr)
	assert.Equal(t, pickerNone, s.handleKey(tcell.KeyEnter, 0))
}
