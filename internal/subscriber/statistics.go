package subscriber

import (
	"sync"

	"eis-ingest-be/pkg/events"
)

// Counter names reported by Statistics.
const (
	CounterTransfersStarted    = "transfers_started"
	CounterTransfersCompleted  = "transfers_completed"
	CounterTransfersSuccessful = "transfers_successful"
	CounterSamplesValid        = "samples_valid"
	CounterSamplesRejected     = "samples_rejected"
	CounterWarnings            = "warnings"
	CounterTemperatureSpikes   = "temperature_spikes"
	CounterDeviations          = "deviations"
)

// Statistics keeps process-lifetime counters of hub events. Warnings are also
// counted per code under "warning.<CODE>".
type Statistics struct {
	mu       sync.RWMutex
	counters map[string]int64
}

func NewStatistics() *Statistics {
	return &Statistics{counters: make(map[string]int64)}
}

func (s *Statistics) Notify(e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := e.(type) {
	case events.TransferStarted:
		s.counters[CounterTransfersStarted]++
	case events.SampleReceived:
		if ev.IsValid {
			s.counters[CounterSamplesValid]++
		} else {
			s.counters[CounterSamplesRejected]++
		}
	case events.TransferCompleted:
		s.counters[CounterTransfersCompleted]++
		if ev.IsSuccessful {
			s.counters[CounterTransfersSuccessful]++
		}
	case events.Warning:
		s.counters[CounterWarnings]++
		s.counters["warning."+ev.WarningType]++
	case events.TemperatureSpike:
		s.counters[CounterTemperatureSpikes]++
	case events.Deviation:
		s.counters[CounterDeviations]++
	}
	return nil
}

// Snapshot returns a copy of the counters.
func (s *Statistics) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}
