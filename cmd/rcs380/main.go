// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command rcs380 talks to a Sony RC-S380 NFC reader over USB.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/config"
	"github.com/ZaparooProject/go-rcs380/detection"
	_ "github.com/ZaparooProject/go-rcs380/detection/usb"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app carries what the subcommands share. Tests replace newDevice and
// detect to run without hardware.
type app struct {
	cfg       *config.Config
	out       io.Writer
	newDevice func(cfg *config.Config) (*rcs380.Device, error)
	detect    func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)

	configPath    string
	sessionLogDir string
	debug         bool
	bus           int
	address       int
}

func newApp(out io.Writer) *app {
	return &app{
		out:       out,
		newDevice: newUSBDevice,
		detect:    detection.DetectAll,
	}
}

func newUSBDevice(cfg *config.Config) (*rcs380.Device, error) {
	opts, err := cfg.DeviceOptions()
	if err != nil {
		return nil, err
	}
	return rcs380.New(opts...)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rcs380",
		Short: "Sony RC-S380 NFC reader tool",
		Long: `rcs380 drives a Sony RC-S380 contactless reader over USB: it queries
the firmware, senses and scans for targets, lists attached readers and
decodes usbmon captures of reader traffic.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(a.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug output")
	flags.StringVar(&a.sessionLogDir, "session-log", "", "Directory for a debug session log")
	flags.IntVar(&a.bus, "bus", 0, "USB bus of the reader (0 = any)")
	flags.IntVar(&a.address, "address", 0, "USB address of the reader (0 = any)")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newFirmwareCmd(a))
	rootCmd.AddCommand(newSenseCmd(a))
	rootCmd.AddCommand(newScanCmd(a))
	rootCmd.AddCommand(newTraceCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	return rootCmd
}

// setup loads the configuration and applies the global flags on top of it
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("bus") {
		cfg.USB.Bus = a.bus
	}
	if flags.Changed("address") {
		cfg.USB.Address = a.address
	}
	if flags.Changed("session-log") {
		cfg.SessionLogDir = a.sessionLogDir
	}
	if a.debug {
		cfg.Debug = true
	}
	a.cfg = cfg

	if cfg.Debug {
		rcs380.SetDebugOutput(cmd.ErrOrStderr())
		rcs380.SetDebugEnabled(true)
	}
	if cfg.SessionLogDir != "" {
		path, err := rcs380.InitSessionLog(cfg.SessionLogDir)
		if err != nil {
			return fmt.Errorf("open session log: %w", err)
		}
		rcs380.Debugf("session log: %s", path)
	}
	return nil
}

// withDevice connects a reader, runs fn and disconnects again
func (a *app) withDevice(ctx context.Context, fn func(*rcs380.Device) error) error {
	device, err := a.newDevice(a.cfg)
	if err != nil {
		return err
	}
	if err := device.Connect(ctx); err != nil {
		return fmt.Errorf("connect reader: %w", err)
	}
	defer func() {
		if err := device.Disconnect(context.WithoutCancel(ctx)); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to disconnect reader: %v\n", err)
		}
	}()
	return fn(device)
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = rcs380.CloseSessionLog() }()

	err := newRootCmd(newApp(os.Stdout)).ExecuteContext(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		_, _ = fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		var te *rcs380.TraceableError
		if errors.As(err, &te) {
			_, _ = fmt.Fprint(os.Stderr, te.FormatTrace())
		}
		return 1
	}
}
