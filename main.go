package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds the state shared by all commands
type app struct {
	cfg        Config
	configPath string

	sysBlock string
	devRoot  string
	debug    bool
}

func (a *app) registry() Registry {
	return newSysfsRegistry(a.cfg.SysBlock)
}

// loadConfig resolves defaults, the config file and explicitly set flags
func (a *app) loadConfig(cmd *cobra.Command) error {
	path, explicit := a.configPath, a.configPath != ""
	if !explicit {
		path = defaultConfigPath()
	}

	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("sys-block") {
		cfg.SysBlock = a.sysBlock
	}
	if flags.Changed("dev-root") {
		cfg.DevRoot = a.devRoot
	}
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	a.cfg = cfg
	setupLogging(os.Stderr, cfg.Debug)
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "imgwrite",
		Short:         "Write disk images to removable devices",
		Version:       appversion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/imgwrite/config.yaml)")
	pf.StringVar(&a.sysBlock, "sys-block", defaultSysBlock, "block device registry root")
	pf.StringVar(&a.devRoot, "dev-root", "/dev", "directory holding the device nodes")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newListCmd(a),
		newWriteCmd(a),
		newPickCmd(a),
		newInspectCmd(),
		newWatchCmd(a),
		newShellCmd(a),
		newVersionCmd(),
	)
	return root
}

func newListCmd(a *app) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l", "disks"},
		Short:   "List removable disks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := listRemovableDisks(a.registry())
			out := cmd.OutOrStdout()
			if err != nil || len(names) == 0 || !details {
				for _, name := range deviceChoices(names, err) {
					fmt.Fprintln(out, name)
				}
				return err
			}

			for _, d := range describeDisks(cmd.Context(), names, a.cfg.DevRoot) {
				printDiskInfo(out, d)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&details, "details", "d", false, "show size, vendor, model and mounts")
	return cmd
}

func printDiskInfo(out io.Writer, d DiskInfo) {
	desc := strings.TrimSpace(d.Vendor + " " + d.Model)
	if desc == "" {
		desc = "unknown model"
	}
	fmt.Fprintf(out, "%s - %s, %s %s\n", d.Path, d.SizeStr, desc, d.MountInfo)
}

// writeFlags are shared by the write and pick commands
type writeFlags struct {
	compression string
	chunkSize   int
	noVerify    bool
	yes         bool
	force       bool
}

func (f *writeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.compression, "compression", "", "image compression: none, gzip, zlib, bzip2, snappy, s2, zstd, xz, zip (default: by extension)")
	flags.IntVar(&f.chunkSize, "chunk-size", 0, "bytes copied per step (default from config)")
	flags.BoolVar(&f.noVerify, "no-verify", false, "skip reading the device back after writing")
	flags.BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation")
	flags.BoolVar(&f.force, "force", false, "allow devices that are not listed as removable disks")
}

func newWriteCmd(a *app) *cobra.Command {
	var flags writeFlags

	cmd := &cobra.Command{
		Use:     "write DEVICE IMAGE",
		Aliases: []string{"w", "flash"},
		Short:   "Write an image to a removable disk",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !flags.force {
				if err := requireRemovable(a.registry(), filepath.Base(name)); err != nil {
					return err
				}
			}
			return a.runWrite(cmd, devicePath(a.cfg.DevRoot, name), args[1], flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newPickCmd(a *app) *cobra.Command {
	var flags writeFlags

	cmd := &cobra.Command{
		Use:   "pick IMAGE",
		Short: "Choose the target disk interactively and write an image to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := runPicker(a.registry(), a.cfg.DevRoot, args[0])
			if err != nil {
				return err
			}
			// The picker already asked
			flags.yes = true
			return a.runWrite(cmd, devicePath(a.cfg.DevRoot, name), args[0], flags)
		},
	}
	flags.register(cmd)
	return cmd
}

// requireRemovable refuses names that are not currently removable disks
func requireRemovable(reg Registry, name string) error {
	names, err := listRemovableDisks(reg)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("%s is not a removable disk (use --force to override)", name)
}

func (a *app) runWrite(cmd *cobra.Command, device, image string, flags writeFlags) error {
	checkForPerms(device)

	if !flags.yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
			fmt.Sprintf("All data on %s will be destroyed. Continue? [y/N] ", device))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	chunkSize := a.cfg.ChunkSize
	if flags.chunkSize > 0 {
		chunkSize = flags.chunkSize
	}
	verify := a.cfg.Verify && !flags.noVerify

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Writing %s to %s\n", image, device)
	start := time.Now()
	res, err := writeImage(ctx, writeOptions{
		Image:       image,
		Device:      device,
		Compression: flags.compression,
		ChunkSize:   chunkSize,
		Verify:      verify,
		Progress:    newProgressReporter(cmd.OutOrStdout(), verify),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "Written: %s (%d bytes) in %s\n", formatBytes(res.Written), res.Written, time.Since(start).Truncate(time.Second))
	fmt.Fprintf(cmd.OutOrStdout(), "SHA-256: %s\n", res.Checksum)
	if res.Verified {
		fmt.Fprintln(cmd.OutOrStdout(), "Image successfully flashed and verified")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Image successfully flashed")
	}
	return nil
}

// errAborted is returned when the user declines to overwrite a device
var errAborted = errors.New("aborted")

// confirm asks a yes/no question, defaulting to no
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func newInspectCmd() *cobra.Command {
	var compression string

	cmd := &cobra.Command{
		Use:     "inspect IMAGE",
		Aliases: []string{"info"},
		Short:   "Show the layout and partition table of an image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := describeImage(args[0], compression)
			if err != nil {
				return err
			}
			printImageReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&compression, "compression", "", "image compression (default: by extension)")
	return cmd
}

func printImageReport(out io.Writer, r imageReport) {
	fmt.Fprintf(out, "Image: %s\n", r.Path)
	fmt.Fprintf(out, "Compression: %s\n", r.Compression)
	if r.Size > 0 {
		fmt.Fprintf(out, "Size: %s (%d bytes)\n", formatBytes(r.Size), r.Size)
	} else {
		fmt.Fprintln(out, "Size: unknown until decompressed")
	}
	if r.Container != "" {
		fmt.Fprintf(out, "Virtual disk: %s (convert to a raw image before writing)\n", r.Container)
		return
	}
	fmt.Fprintf(out, "Layout: %s\n", r.Layout)
	if r.TableErr != nil {
		fmt.Fprintf(out, "Partition table: none (%v)\n", r.TableErr)
		return
	}
	fmt.Fprint(out, r.Table.String())
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report removable disks as they are plugged in and removed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				interval = a.cfg.WatchInterval
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err := watchDisks(ctx, a.registry(), interval, func(ev WatchEvent) {
				if ev.Connected {
					fmt.Fprintf(out, "+ %s\n", devicePath(a.cfg.DevRoot, ev.Name))
				} else {
					fmt.Fprintf(out, "- %s\n", devicePath(a.cfg.DevRoot, ev.Name))
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between scans (default from config)")
	return cmd
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive command shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(a.cfg, a.registry())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skips config loading
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "imgwrite %s\n", appversion)
		},
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
