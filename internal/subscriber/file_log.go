package subscriber

import (
	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/events"
)

// FileLog writes every hub event as a structured line to its own log file.
type FileLog struct {
	logger logger.ILogger
}

func NewFileLog(log logger.ILogger) *FileLog {
	return &FileLog{logger: log}
}

func (f *FileLog) Notify(e events.Event) error {
	details := e.Payload()
	details["event_type"] = e.EventType()
	details["occurred_at"] = e.Timestamp()

	switch ev := e.(type) {
	case events.Warning:
		if ev.Severity == events.SeverityCritical {
			f.logger.Error("Events", ev.Message, details)
		} else {
			f.logger.Warn("Events", ev.Message, details)
		}
	case events.TemperatureSpike:
		f.logger.Warn("Events", "Temperature spike", details)
	case events.Deviation:
		f.logger.Warn("Events", "Average deviation", details)
	default:
		f.logger.Info("Events", e.EventType(), details)
	}
	return nil
}
