package client

import (
	"context"

	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/dataset"

	"github.com/pkg/errors"
)

// Report summarizes one driver run.
type Report struct {
	Datasets  int `json:"datasets"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Abandoned int `json:"abandoned"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Recreated int `json:"recreated"`
}

// Driver sends datasets to the server one session at a time.
type Driver struct {
	factory ChannelFactory
	logger  logger.ILogger
}

func NewDriver(factory ChannelFactory, log logger.ILogger) *Driver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Driver{factory: factory, logger: log}
}

// Run drives StartSession, PushSample and EndSession for every dataset.
//
// A transport fault abandons the in-flight dataset: the channel is aborted,
// a new one is created and the run continues with the next dataset. If the
// channel cannot be recreated the run stops and the error is returned. Every
// channel is released exactly once, by Abort after a fault or Close otherwise.
func (d *Driver) Run(ctx context.Context, datasets []dataset.Dataset) (Report, error) {
	report := Report{Datasets: len(datasets)}

	ch, err := d.factory()
	if err != nil {
		return report, errors.Wrap(err, "create channel failed")
	}
	defer func() {
		if ch != nil {
			d.release(ch, false)
		}
	}()

	for i := range datasets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ds := &datasets[i]
		err := d.send(ctx, ch, ds, &report)
		if err == nil {
			continue
		}
		if !IsTransport(err) {
			return report, err
		}

		report.Abandoned++
		d.logger.Warn("Driver", "Transport fault, abandoning dataset", map[string]interface{}{
			"file":  ds.Meta.SourceFileName,
			"error": err.Error(),
		})
		d.release(ch, true)
		ch = nil

		if err := ctx.Err(); err != nil {
			return report, err
		}
		next, err := d.factory()
		if err != nil {
			d.logger.Error("Driver", "Failed to recreate channel", map[string]interface{}{"error": err.Error()})
			return report, errors.Wrap(err, "recreate channel failed")
		}
		ch = next
		report.Recreated++
	}

	d.logger.Info("Driver", "Run finished", map[string]interface{}{
		"datasets":  report.Datasets,
		"completed": report.Completed,
		"skipped":   report.Skipped,
		"abandoned": report.Abandoned,
		"accepted":  report.Accepted,
		"rejected":  report.Rejected,
	})
	return report, nil
}

func (d *Driver) send(ctx context.Context, ch Channel, ds *dataset.Dataset, report *Report) error {
	res, err := ch.StartSession(ctx, &ds.Meta)
	if err != nil {
		return errors.Wrapf(err, "start session %s", ds.Meta.SourceFileName)
	}
	if !res.Acknowledged {
		report.Skipped++
		d.logger.Warn("Driver", "Session refused, skipping dataset", map[string]interface{}{
			"file":   ds.Meta.SourceFileName,
			"result": res.String(),
		})
		return nil
	}

	d.logger.Info("Driver", "Session started", map[string]interface{}{
		"battery_id":      ds.Meta.BatteryID,
		"test_id":         ds.Meta.TestID,
		"state_of_charge": ds.Meta.StateOfCharge,
		"samples":         len(ds.Samples),
	})

	for i := range ds.Samples {
		sample := &ds.Samples[i]
		res, err := ch.PushSample(ctx, sample)
		if err != nil {
			return errors.Wrapf(err, "push row %d", sample.RowIndex)
		}
		if res.Acknowledged {
			report.Accepted++
			continue
		}
		report.Rejected++
		d.logger.Warn("Driver", "Sample rejected", map[string]interface{}{
			"row_index": sample.RowIndex,
			"result":    res.String(),
		})
	}

	if _, err := ch.EndSession(ctx); err != nil {
		return errors.Wrapf(err, "end session %s", ds.Meta.SourceFileName)
	}
	report.Completed++
	return nil
}

func (d *Driver) release(ch Channel, faulted bool) {
	if faulted {
		ch.Abort()
		return
	}
	if err := ch.Close(); err != nil {
		d.logger.Warn("Driver", "Graceful close failed", map[string]interface{}{"error": err.Error()})
	}
}
