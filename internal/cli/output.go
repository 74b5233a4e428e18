package cli

import (
	"fmt"
	"strings"
	"time"

	"dispatch-cli/internal/format"
	"dispatch-cli/internal/model"

	"github.com/spf13/cobra"
)

// envelope is the shape of every command's output.
type envelope struct {
	Data  any      `json:"data" yaml:"data"`
	Hints []string `json:"_hints,omitempty" yaml:"_hints,omitempty"`
}

// Text renders the data followed by the hints. Data without a text form is
// written as YAML.
func (e envelope) Text() string {
	var b strings.Builder
	if t, ok := e.Data.(format.Texter); ok {
		b.WriteString(strings.TrimRight(t.Text(), "\n"))
		b.WriteString("\n")
	} else if e.Data != nil {
		_ = format.WriteYAML(&b, e.Data)
	}
	for _, h := range e.Hints {
		b.WriteString("hint: " + h + "\n")
	}
	return b.String()
}

func writeOut(cmd *cobra.Command, app *App, data any, hints ...string) error {
	return format.Write(cmd.OutOrStdout(), envelope{Data: data, Hints: hints}, app.Format, app.Pretty)
}

type snapshotOut struct {
	model.BoardSnapshot `yaml:",inline"`
}

func (s snapshotOut) Text() string { return format.BoardText(s.BoardSnapshot) }

type workOrderOut struct {
	model.WorkOrder `yaml:",inline"`
}

func (w workOrderOut) Text() string { return format.WorkOrderText(w.WorkOrder) }

type assignOut struct {
	WorkOrderID            string    `json:"work_order_id" yaml:"work_order_id"`
	CrewID                 string    `json:"crew_id" yaml:"crew_id"`
	ScheduledStart         time.Time `json:"scheduled_start" yaml:"scheduled_start"`
	EstimatedDurationHours float64   `json:"estimated_duration_hours" yaml:"estimated_duration_hours"`
	Conflicts              int       `json:"conflicts" yaml:"conflicts"`
}

func (a assignOut) Text() string {
	s := fmt.Sprintf("%s assigned to %s at %s (%.1fh)", a.WorkOrderID, a.CrewID, a.ScheduledStart.Local().Format(format.TimeLayout), a.EstimatedDurationHours)
	if a.Conflicts > 0 {
		s += fmt.Sprintf(", %d scheduling conflict(s)", a.Conflicts)
	}
	return s
}

type messageOut struct {
	Message string `json:"message" yaml:"message"`
}

func (m messageOut) Text() string { return m.Message }

// summaryOut is one line of `dispatch watch`.
type summaryOut struct {
	At      time.Time     `json:"at" yaml:"at"`
	Date    string        `json:"date" yaml:"date"`
	View    model.View    `json:"view" yaml:"view"`
	Summary model.Summary `json:"summary" yaml:"summary"`
}

func (s summaryOut) Text() string {
	return fmt.Sprintf("%s %s (%s) %s", s.At.Local().Format(time.TimeOnly), s.Date, s.View, format.SummaryLine(s.Summary))
}
