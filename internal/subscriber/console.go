package subscriber

import (
	"fmt"
	"io"
	"time"

	"eis-ingest-be/pkg/events"

	"github.com/fatih/color"
)

var (
	infoColor     = color.New(color.FgCyan)
	okColor       = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	criticalColor = color.New(color.FgRed, color.Bold)
)

// Console prints hub events to a terminal. Lifecycle and per-sample lines are
// printed only in detailed mode; warnings, spikes and deviations only when
// warning output is enabled.
type Console struct {
	out      io.Writer
	detailed bool
	warnings bool
}

func NewConsole(out io.Writer, detailed, warnings bool) *Console {
	if out == nil {
		out = color.Output
	}
	return &Console{out: out, detailed: detailed, warnings: warnings}
}

func (c *Console) Notify(e events.Event) error {
	switch ev := e.(type) {
	case events.TransferStarted:
		if c.detailed {
			return c.print(infoColor, "[TRANSFER STARTED] %s/%s/%s expecting %d samples (%s)\n",
				ev.Session.BatteryID, ev.Session.TestID, ev.Session.StateOfCharge, ev.ExpectedSamples, ev.Session.SourceFileName)
		}
	case events.SampleReceived:
		if !c.detailed {
			return nil
		}
		if ev.IsValid {
			return c.print(okColor, "[SAMPLE] row %d accepted (%d/%d) f=%gHz R=%gΩ X=%gΩ V=%gV T=%g°C\n",
				ev.Sample.RowIndex, ev.SampleCount, ev.TotalSamples, ev.Sample.FrequencyHz,
				ev.Sample.ResistanceOhm, ev.Sample.ReactanceOhm, ev.Sample.VoltageV, ev.Sample.TemperatureC)
		}
		return c.print(warnColor, "[SAMPLE] row %d rejected (%d/%d)\n", ev.Sample.RowIndex, ev.SampleCount, ev.TotalSamples)
	case events.TransferCompleted:
		if c.detailed {
			col := okColor
			if !ev.IsSuccessful {
				col = criticalColor
			}
			return c.print(col, "[TRANSFER COMPLETED] %s/%s/%s total=%d valid=%d rejected=%d duration=%s successful=%t\n",
				ev.Session.BatteryID, ev.Session.TestID, ev.Session.StateOfCharge,
				ev.TotalSamples, ev.ValidSamples, ev.RejectedSamples, ev.Duration.Round(time.Millisecond), ev.IsSuccessful)
		}
	case events.Warning:
		if c.warnings {
			col := warnColor
			switch ev.Severity {
			case events.SeverityCritical:
				col = criticalColor
			case events.SeverityInfo:
				col = infoColor
			}
			return c.print(col, "[%s] %s: %s\n", ev.Severity, ev.WarningType, ev.Message)
		}
	case events.TemperatureSpike:
		if c.warnings {
			return c.print(warnColor, "[TEMPERATURE SPIKE] row %d %s %.2f°C -> %.2f°C (Δ%+.2f°C, threshold %g°C)\n",
				ev.Sample.RowIndex, ev.Direction, ev.Previous, ev.Current, ev.Delta, ev.Threshold)
		}
	case events.Deviation:
		if c.warnings {
			return c.print(warnColor, "[DEVIATION] row %d %s %.6g vs mean %.6g (%.1f%% > %g%%)\n",
				ev.Sample.RowIndex, ev.Metric, ev.Current, ev.Mean, ev.Percent, ev.Threshold)
		}
	}
	return nil
}

func (c *Console) print(col *color.Color, format string, args ...interface{}) error {
	_, err := col.Fprintf(c.out, format, args...)
	if err != nil {
		return fmt.Errorf("console subscriber: %w", err)
	}
	return nil
}
