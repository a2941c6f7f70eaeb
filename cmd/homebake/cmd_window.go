/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/toptech5419/homebake/internal/shift"
)

var (
	windowShift  string
	windowAt     string
	windowOutput string
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Resolve the active window of a shift",
	Long: `Resolve the UTC bounds of the Morning or Night shift window.

Times are local bakery time (UTC+1). Within 30 seconds after a shift
boundary the window is reported as cleared.

Examples:
  # Current Morning window
  homebake window --shift morning

  # Night window as seen at a given local time, as YAML
  homebake window --shift night --at 2024-03-14T22:00:00 --output yaml
`,
	RunE: runWindow,
}

func init() {
	windowCmd.Flags().StringVarP(&windowShift, "shift", "s", "", "Shift name (morning or night)")
	windowCmd.Flags().StringVar(&windowAt, "at", "", "Local civil time to resolve at (2006-01-02T15:04:05); defaults to now")
	windowCmd.Flags().StringVarP(&windowOutput, "output", "o", "text", "Output format: text, json or yaml")
	_ = windowCmd.MarkFlagRequired("shift")
	rootCmd.AddCommand(windowCmd)
}

// windowReport is the printable form of a resolved window.
type windowReport struct {
	Shift      string     `json:"shift" yaml:"shift"`
	ObservedAt string     `json:"observed_at" yaml:"observed_at"`
	State      string     `json:"state" yaml:"state"`
	Reason     string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	StartUTC   *time.Time `json:"start_utc,omitempty" yaml:"start_utc,omitempty"`
	EndUTC     *time.Time `json:"end_utc,omitempty" yaml:"end_utc,omitempty"`
}

func runWindow(cmd *cobra.Command, args []string) error {
	name, err := shift.ParseName(windowShift)
	if err != nil {
		return err
	}

	now := shift.Now(shift.SystemClock{})
	if windowAt != "" {
		if now, err = shift.ParseCivil(windowAt); err != nil {
			return err
		}
	}

	window, err := shift.Resolve(name, now)
	if err != nil {
		return err
	}
	return renderWindow(cmd.OutOrStdout(), windowOutput, newWindowReport(name, now, window))
}

func newWindowReport(name shift.Name, now shift.CivilInstant, w shift.Window) windowReport {
	report := windowReport{
		Shift:      name.String(),
		ObservedAt: now.String(),
		State:      w.State(),
	}
	if w.IsCleared() {
		report.Reason = shift.ClearedReason
		return report
	}
	start, end := w.StartUTC, w.EndUTC
	report.StartUTC, report.EndUTC = &start, &end
	return report
}

func renderWindow(out io.Writer, format string, report windowReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	case "text", "":
		if report.StartUTC == nil {
			_, err := fmt.Fprintf(out, "%s at %s: %s (%s)\n", report.Shift, report.ObservedAt, report.State, report.Reason)
			return err
		}
		_, err := fmt.Fprintf(out, "%s at %s: %s %s .. %s\n",
			report.Shift, report.ObservedAt, report.State,
			report.StartUTC.Format(time.RFC3339), report.EndUTC.Format(time.RFC3339))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
