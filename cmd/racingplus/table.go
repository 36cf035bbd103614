package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/racingplus/client/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func instanceRows(entry *domain.InstanceEntry, procs domain.ProcessManager) [][]string {
	if entry == nil || !procs.IsRunning(entry.PID) {
		return [][]string{{"Instance", "not running"}}
	}
	if entry.PID == procs.GetCurrentPID() {
		return [][]string{{"Instance", "stale record (this process)"}}
	}
	name, err := procs.Name(entry.PID)
	if err != nil {
		name = "unknown"
	}
	return [][]string{
		{"Instance", "running"},
		{"PID", strconv.Itoa(entry.PID)},
		{"Process", name},
		{"Control URL", entry.ControlURL},
		{"Version", entry.AppVersion},
		{"Started", formatUnix(entry.StartedAt)},
	}
}

func settingsRows(path string, s domain.Settings) [][]string {
	rows := [][]string{{"File", path}}

	geometry := "default"
	if w := s.Window; w != nil {
		geometry = fmt.Sprintf("%dx%d", w.Width, w.Height)
		if w.X != nil && w.Y != nil {
			geometry += fmt.Sprintf(" at %d,%d", *w.X, *w.Y)
		}
	}
	rows = append(rows, []string{"Window", geometry})

	input := "keyboard"
	if s.Controller() {
		input = "controller"
	}
	rows = append(rows, []string{"Hotkey helpers", input})
	rows = append(rows, []string{"Other keys", strconv.Itoa(len(s.Extra))})
	return rows
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "unknown"
	}
	started := time.Unix(sec, 0)
	return fmt.Sprintf("%s (%s ago)", started.Format(time.RFC3339), time.Since(started).Round(time.Second))
}
