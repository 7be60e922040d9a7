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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/capture"
	"github.com/ZaparooProject/go-rcs380/config"
	"github.com/ZaparooProject/go-rcs380/detection"
	"github.com/ZaparooProject/go-rcs380/polling"
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			_, _ = fmt.Fprintf(a.out, "rcs380 version %s\n", version)
			_, _ = fmt.Fprintf(a.out, "commit: %s\n", commit)
			_, _ = fmt.Fprintf(a.out, "date: %s\n", date)
		},
	}
}

func newFirmwareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "firmware",
		Short: "Show the reader's firmware and PD data versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDevice(cmd.Context(), func(device *rcs380.Device) error {
				fw, err := device.GetFirmwareVersion(cmd.Context())
				if err != nil {
					return err
				}
				pd, err := device.GetPDDataVersion(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(a.out, titleStyle.Render("RC-S380"))
				_, _ = fmt.Fprintln(a.out, field("firmware", fw.String()))
				_, _ = fmt.Fprintln(a.out, field("pd data", pd.String()))
				if t := device.Transport(); t != nil {
					_, _ = fmt.Fprintln(a.out, field("transport", string(t.Type())))
				}
				return nil
			})
		},
	}
}

func newSenseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sense",
		Short: "Send one type A SENS_REQ and print the ATQA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDevice(cmd.Context(), func(device *rcs380.Device) error {
				sens, err := device.SenseTypeA(cmd.Context())
				if errors.Is(err, rcs380.ErrNoTargetDetected) {
					_, _ = fmt.Fprintln(a.out, absentStyle.Render("no target"))
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(a.out, presentStyle.Render("target found"))
				_, _ = fmt.Fprintln(a.out, field("ATQA", fmt.Sprintf("% X", sens.ATQA)))
				_, _ = fmt.Fprintln(a.out, field("type 1", strconv.FormatBool(sens.Type1Tag)))
				return nil
			})
		},
	}
}

type scanFlags struct {
	probe    string
	bitrate  string
	data     string
	interval time.Duration
	count    int
	changes  bool
}

func newScanCmd(a *app) *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the RF field until interrupted",
		Long: `Scan repeats a probe and prints one line per step. The felica probe
sends a raw frame (a FeliCa polling request unless --data is given) at the
configured bitrate; the typea probe sends SENS_REQ.`,
		Example: `  # Scan for FeliCa cards, printing only arrivals and departures
  rcs380 scan --changes

  # Ten type A probes
  rcs380 scan --probe typea --count 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScan(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.probe, "probe", "", "Probe to run: felica or typea (default from config)")
	cmd.Flags().StringVar(&flags.bitrate, "bitrate", "", "RF bitrate for raw probes, e.g. 212F (default from config)")
	cmd.Flags().StringVar(&flags.data, "data", "", "Hex bytes sent by the felica probe")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "Pause between steps (default from config)")
	cmd.Flags().IntVar(&flags.count, "count", 0, "Stop after this many steps (0 = until interrupted)")
	cmd.Flags().BoolVar(&flags.changes, "changes", false, "Only print steps where the field changed")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, flags *scanFlags) error {
	if flags.probe != "" {
		a.cfg.Scan.Probe = flags.probe
	}
	if flags.bitrate != "" {
		a.cfg.Scan.Bitrate = flags.bitrate
	}
	if flags.interval > 0 {
		a.cfg.Scan.Interval = flags.interval
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	scanCfg, err := a.cfg.ScanConfig()
	if err != nil {
		return err
	}
	data := polling.FeliCaPolling
	if flags.data != "" {
		if data, err = parseHex(flags.data); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	return a.withDevice(ctx, func(device *rcs380.Device) error {
		probe := polling.RawProbe(device, scanCfg.Bitrate, data, scanCfg.RFTimeout)
		if a.cfg.Scan.Probe == config.ProbeTypeA {
			probe = polling.TypeAProbe(device)
		}
		scanner, err := polling.NewScanner(probe, scanCfg)
		if err != nil {
			return err
		}

		steps := 0
		for res, err := range scanner.Scan(ctx) {
			steps++
			if err != nil {
				_, _ = fmt.Fprintf(a.out, "%4d %s\n", res.Seq, errorStyle.Render(err.Error()))
				if rcs380.IsFatal(err) {
					return err
				}
			} else if !flags.changes || res.Changed {
				_, _ = fmt.Fprintln(a.out, formatResult(res))
			}
			if flags.count > 0 && steps >= flags.count {
				break
			}
		}
		return nil
	})
}

func formatResult(res polling.Result) string {
	ts := res.Time.Format("15:04:05.000")
	if !res.Present {
		return fmt.Sprintf("%4d %s %s", res.Seq, ts, absentStyle.Render("-"))
	}
	return fmt.Sprintf("%4d %s %s", res.Seq, ts, presentStyle.Render(fmt.Sprintf("% X", res.Response)))
}

func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: hex data %q", rcs380.ErrInvalidParameter, s)
	}
	return data, nil
}

type traceFlags struct {
	device  string
	verbose bool
}

func newTraceCmd(a *app) *cobra.Command {
	flags := &traceFlags{}

	cmd := &cobra.Command{
		Use:   "trace <capture.pcap>",
		Short: "Decode a usbmon capture of reader traffic",
		Example: `  # Record with tcpdump, then decode
  tcpdump -i usbmon1 -w rcs380.pcap
  rcs380 trace rcs380.pcap --device 1:4`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runTrace(args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.device, "device", "", "Only show the device at bus:address")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Also print raw transfer bytes")
	return cmd
}

func (a *app) runTrace(path string, flags *traceFlags) error {
	var opts []capture.Option
	if flags.device != "" {
		bus, address, err := parseBusAddress(flags.device)
		if err != nil {
			return err
		}
		opts = append(opts, capture.WithDevice(bus, address))
	}

	f, err := os.Open(path) //nolint:gosec // path is the user's capture file
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer func() { _ = f.Close() }()

	events, err := capture.Decode(f, opts...)
	if err != nil {
		return err
	}

	for _, e := range events {
		style := txStyle
		if e.Direction == rcs380.TraceRX {
			style = rxStyle
		}
		desc := e.Describe()
		if e.Err != nil {
			desc = errorStyle.Render(desc)
		}
		line := fmt.Sprintf("%s %s %s %s", e.Time.Format("15:04:05.000000"), e.Port,
			style.Render(string(e.Direction)), desc)
		_, _ = fmt.Fprintln(a.out, line)
		if flags.verbose {
			_, _ = fmt.Fprintf(a.out, "    % X\n", e.Raw)
		}
	}
	_, _ = fmt.Fprintln(a.out, labelStyle.Render(fmt.Sprintf("%d transfers", len(events))))
	return nil
}

func parseBusAddress(s string) (bus, address int, err error) {
	parts := strings.Split(strings.TrimPrefix(s, "usb:"), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: device %q, want bus:address", rcs380.ErrInvalidParameter, s)
	}
	if bus, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("%w: bus %q", rcs380.ErrInvalidParameter, parts[0])
	}
	if address, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: address %q", rcs380.ErrInvalidParameter, parts[1])
	}
	return bus, address, nil
}

func newListCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attached readers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "" {
				a.cfg.Detection.Mode = mode
			}
			opts, err := a.cfg.DetectionOptions()
			if err != nil {
				return err
			}
			opts.EnableCache = false
			return a.runList(cmd.Context(), &opts)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Detection mode: passive, safe or full (default from config)")
	return cmd
}

func (a *app) runList(ctx context.Context, opts *detection.Options) error {
	devices, err := a.detect(ctx, opts)
	if err != nil {
		return err
	}
	for _, d := range devices {
		_, _ = fmt.Fprintf(a.out, "%s %s %s\n", titleStyle.Render(d.Path), d.Name, labelStyle.Render("("+d.Confidence.String()+")"))
		for _, key := range []string{"vidpid", "firmware", "pddata", "error"} {
			if v, ok := d.Metadata[key]; ok {
				_, _ = fmt.Fprintln(a.out, "  "+field(key, v))
			}
		}
	}
	return nil
}
