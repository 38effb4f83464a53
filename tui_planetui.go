package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	tui "github.com/network-plane/planetui"
)

const sessionSelectedDevice = "selected_device"

type shellRunFunc func(rt tui.CommandRuntime, input tui.CommandInput) tui.CommandResult

// shellFactory creates shell commands sharing the tool configuration
type shellFactory struct {
	spec tui.CommandSpec
	run  shellRunFunc
}

// shellCommand implements a single shell command
type shellCommand struct {
	spec tui.CommandSpec
	run  shellRunFunc
}

func (f *shellFactory) Spec() tui.CommandSpec { return f.spec }

func (f *shellFactory) New(rt tui.CommandRuntime) (tui.Command, error) {
	return &shellCommand{spec: f.spec, run: f.run}, nil
}

func (c *shellCommand) Spec() tui.CommandSpec { return c.spec }

func (c *shellCommand) Execute(rt tui.CommandRuntime, input tui.CommandInput) tui.CommandResult {
	return c.run(rt, input)
}

func shellError(rt tui.CommandRuntime, msg string) tui.CommandResult {
	rt.Output().Error(msg)
	return tui.CommandResult{
		Status: tui.StatusSuccess,
		Error:  &tui.CommandError{Message: msg},
	}
}

// shell wires the planetui commands to the registry and writer
type shell struct {
	cfg Config
	reg Registry
	// ask puts a yes/no question to the user
	ask func(question string) (bool, error)
}

func (sh *shell) listFactory() tui.CommandFactory {
	return &shellFactory{
		spec: tui.CommandSpec{
			Name:        "list",
			Summary:     "List removable disks",
			Description: "Scans the block device registry again and lists the removable disks.",
			Context:     "device",
			Aliases:     []string{"ls", "refresh", "disks"},
		},
		run: func(rt tui.CommandRuntime, input tui.CommandInput) tui.CommandResult {
			names, err := listRemovableDisks(sh.reg)
			if err != nil {
				rt.Output().Warn(fmt.Sprintf("Cannot list devices: %v", err))
			}
			for i, name := range deviceChoices(names, err) {
				rt.Output().Info(fmt.Sprintf("%d. %s", i+1, name))
			}
			return tui.CommandResult{Status: tui.StatusSuccess}
		},
	}
}

func (sh *shell) selectFactory() tui.CommandFactory {
	return &shellFactory{
		spec: tui.CommandSpec{
			Name:        "select",
			Summary:     "Select the target device",
			Description: "Selects one of the listed removable disks and switches to the image context.",
			Context:     "device",
			Aliases:     []string{"sel", "use"},
			Args: []tui.ArgSpec{
				{Name: "device", Type: tui.ArgTypeString, Required: true, Description: "Device name as listed"},
			},
		},
		run: func(rt tui.CommandRuntime, input tui.CommandInput) tui.CommandResult {
			name := input.Args.String("device")
			if name == "" {
				return shellError(rt, "device name required")
			}
			if err := sh.checkListed(name); err != nil {
				return shellError(rt, err.Error())
			}

			rt.Session().Set(sessionSelectedDevice, name)
			rt.NavigateTo("image", nil)
			rt.Output().Info(fmt.Sprintf("Selected device: %s", devicePath(sh.cfg.DevRoot, name)))
			return tui.CommandResult{Status: tui.StatusSuccess}
		},
	}
}

func (sh *shell) interactiveFactory() tui.CommandFactory {
	return &shellFactory{
		spec: tui.CommandSpec{
			Name:        "interactive",
			Summary:     "Pick the target device full-screen",
			Description: "Launches the full-screen device picker and selects the chosen device.",
			Context:     "device",
			Aliases:     []string{"i", "pick"},
		},
		run: func(rt tui.CommandRuntime, input tui.CommandInput) tui.CommandResult {
			name, err := runPicker(sh.reg, sh.cfg.DevRoot, "")
			if err != nil {
				rt.Output().Warn(err.Error())
				return tui.CommandResult{Status: tui.StatusSuccess}
			}
			rt.Session().Set(sessionSelectedDevice, name)
			rt.NavigateTo("image", nil)
			rt.Output().Info(fmt.Sprintf("Selected device: %s", devicePath(sh.cfg.DevRoot, name)))
			return tui.CommandResult{Status: tui.StatusSuccess}
		},
	}
}

func (sh *shell) writeFactory() tui.CommandFactory {
	return &shellFactory{
		spec: tui.CommandSpec{
			Name:        "write",
			Summary:     "Write an image to the selected device",
			Description: "Asks for confirmation, decompresses the image if needed, unmounts the device, writes and verifies it.",
			Context:     "image",
			Aliases:     []string{"w", "flash"},
			Args: []tui.ArgSpec{
				{Name: "image", Type: tui.ArgTypeString, Required: true, Description: "Image file path"},
			},
			Flags: []tui.FlagSpec{
				{Name: "yes", Shorthand: "y", Type: tui.ArgTypeBool, Description: "Do not ask for confirmation"},
			},
		},
		run: func(rt tui.CommandRuntime, input tui.CommandInput) tui.CommandResult {
			val, ok := rt.Session().Get(sessionSelectedDevice)
			if !ok || val == nil {
				return shellError(rt, "No device selected. Use 'select <device>' first.")
			}
			name, ok := val.(string)
			if !ok {
				return shellError(rt, "invalid device selection")
			}

			device, err := sh.prepareWrite(name, input.Flags.Bool("yes"))
			if errors.Is(err, errAborted) {
				rt.Output().Info("Aborted.")
				return tui.CommandResult{Status: tui.StatusSuccess}
			}
			if err != nil {
				return shellError(rt, err.Error())
			}

			image := input.Args.String("image")
			if abs, err := filepath.Abs(image); err == nil {
				image = abs
			}

			res, err := writeImage(context.Background(), writeOptions{
				Image:     image,
				Device:    device,
				ChunkSize: sh.cfg.ChunkSize,
				Verify:    sh.cfg.Verify,
				Progress:  newProgressReporter(os.Stdout, sh.cfg.Verify),
			})
			if err != nil {
				return shellError(rt, fmt.Sprintf("Write failed: %v", err))
			}

			rt.Output().Info(fmt.Sprintf("Image successfully flashed: %s (sha256 %s)", formatBytes(res.Written), res.Checksum))
			return tui.CommandResult{Status: tui.StatusSuccess}
		},
	}
}

// prepareWrite checks the selected device is still listed and writable,
// then asks before anything is destroyed. It returns the device path.
func (sh *shell) prepareWrite(name string, yes bool) (string, error) {
	// The device may have been unplugged since it was selected
	if err := sh.checkListed(name); err != nil {
		return "", err
	}

	device := devicePath(sh.cfg.DevRoot, name)
	if !hasWritePermission(device) {
		return "", fmt.Errorf("no permission to write the device: %s, try with elevated privileges", device)
	}

	if !yes {
		ok, err := sh.ask(fmt.Sprintf("All data on %s will be destroyed. Continue? [y/N] ", device))
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errAborted
		}
	}
	return device, nil
}

// readlineAsk prompts on the shell's own line editor
func readlineAsk(rl *readline.Instance) func(string) (bool, error) {
	return func(question string) (bool, error) {
		rl.SetPrompt(question)
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return confirm(strings.NewReader(line), io.Discard, "")
	}
}

// checkListed makes sure name is currently a removable disk
func (sh *shell) checkListed(name string) error {
	names, err := listRemovableDisks(sh.reg)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("%s is not a removable disk", name)
}

// initPlanetUI registers contexts and commands
func (sh *shell) initPlanetUI() {
	tui.RegisterContext("device", "Removable device selection")
	tui.RegisterContext("image", "Image writing for the selected device")

	tui.RegisterCommand(sh.listFactory())
	tui.RegisterCommand(sh.selectFactory())
	tui.RegisterCommand(sh.interactiveFactory())
	tui.RegisterCommand(sh.writeFactory())
}

// runShell runs the planetui-based shell
func runShell(cfg Config, reg Registry) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "imgwrite> ",
		HistoryFile:     filepath.Join(os.TempDir(), "imgwrite_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	sh := &shell{cfg: cfg, reg: reg, ask: readlineAsk(rl)}
	sh.initPlanetUI()

	return tui.Run(rl)
}
