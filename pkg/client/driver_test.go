package client

import (
	"context"
	"fmt"
	"testing"

	"eis-ingest-be/pkg/dataset"
	"eis-ingest-be/pkg/eis"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records calls and fails with a transport fault on the
// configured call number (1-based, counted across all methods).
type fakeChannel struct {
	id       int
	failAt   int
	calls    []string
	refuse   bool
	aborts   int
	closes   int
	closeErr error
}

func (f *fakeChannel) record(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return errors.Wrap(ErrTransport, "connection reset")
	}
	return nil
}

func (f *fakeChannel) StartSession(_ context.Context, meta *eis.SessionMetadata) (*eis.CommandResult, error) {
	if err := f.record("start:" + meta.SourceFileName); err != nil {
		return nil, err
	}
	if f.refuse {
		return eis.Nack(eis.StatusCompleted, &eis.FaultInfo{Kind: "ValidationFault", Message: "nope"}), nil
	}
	return eis.Ack(eis.StatusInProgress), nil
}

func (f *fakeChannel) PushSample(_ context.Context, sample *eis.Sample) (*eis.CommandResult, error) {
	if err := f.record(fmt.Sprintf("push:%d", sample.RowIndex)); err != nil {
		return nil, err
	}
	if sample.ResistanceOhm > 1 {
		return eis.Nack(eis.StatusInProgress, &eis.FaultInfo{Kind: "BoundsViolation"}), nil
	}
	return eis.Ack(eis.StatusInProgress), nil
}

func (f *fakeChannel) EndSession(context.Context) (*eis.CommandResult, error) {
	if err := f.record("end"); err != nil {
		return nil, err
	}
	return eis.Ack(eis.StatusCompleted), nil
}

func (f *fakeChannel) Abort() { f.aborts++ }

func (f *fakeChannel) Close() error {
	f.closes++
	return f.closeErr
}

type fakeFactory struct {
	channels []*fakeChannel
	plan     []*fakeChannel
	failFrom int
}

func (ff *fakeFactory) create() (Channel, error) {
	n := len(ff.channels)
	if ff.failFrom > 0 && n+1 >= ff.failFrom {
		return nil, errors.New("server unreachable")
	}
	ch := &fakeChannel{id: n}
	if n < len(ff.plan) {
		ch = ff.plan[n]
	}
	ff.channels = append(ff.channels, ch)
	return ch, nil
}

func datasets(names ...string) []dataset.Dataset {
	out := make([]dataset.Dataset, len(names))
	for i, name := range names {
		out[i].Meta = eis.SessionMetadata{BatteryID: "B1", TestID: "T1", StateOfCharge: "50%", SourceFileName: name, ExpectedSampleCount: 2}
		out[i].Samples = []eis.Sample{
			{RowIndex: 1, FrequencyHz: 1000, ResistanceOhm: 0.1},
			{RowIndex: 2, FrequencyHz: 500, ResistanceOhm: 0.2},
		}
	}
	return out
}

func assertReleasedOnce(t *testing.T, ch *fakeChannel) {
	t.Helper()
	assert.Equal(t, 1, ch.aborts+ch.closes, "channel %d released %d times", ch.id, ch.aborts+ch.closes)
}

func TestRunHappyPath(t *testing.T) {
	ff := &fakeFactory{}
	report, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv", "b.csv"))
	require.NoError(t, err)

	require.Len(t, ff.channels, 1)
	ch := ff.channels[0]
	assert.Equal(t, []string{"start:a.csv", "push:1", "push:2", "end", "start:b.csv", "push:1", "push:2", "end"}, ch.calls)
	assert.Equal(t, 1, ch.closes)
	assert.Zero(t, ch.aborts)
	assert.Equal(t, Report{Datasets: 2, Completed: 2, Accepted: 4}, report)
}

func TestRunCountsRejectedSamples(t *testing.T) {
	sets := datasets("a.csv")
	sets[0].Samples[1].ResistanceOhm = 5

	ff := &fakeFactory{}
	report, err := NewDriver(ff.create, nil).Run(context.Background(), sets)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Completed)
}

func TestRunRecreatesChannelAfterTransportFault(t *testing.T) {
	// Fail on the second push of the first dataset.
	ff := &fakeFactory{plan: []*fakeChannel{{id: 0, failAt: 3}}}
	report, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv", "b.csv"))
	require.NoError(t, err)

	require.Len(t, ff.channels, 2)
	first, second := ff.channels[0], ff.channels[1]
	assert.Equal(t, []string{"start:a.csv", "push:1", "push:2"}, first.calls)
	assert.Equal(t, 1, first.aborts)
	assert.Zero(t, first.closes)

	assert.Equal(t, []string{"start:b.csv", "push:1", "push:2", "end"}, second.calls)
	assertReleasedOnce(t, second)
	assert.Equal(t, 1, second.closes)

	assert.Equal(t, 1, report.Abandoned)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Recreated)
}

func TestRunFaultOnEndSessionAbandonsDataset(t *testing.T) {
	ff := &fakeFactory{plan: []*fakeChannel{{id: 0, failAt: 4}}}
	report, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv"))
	require.NoError(t, err)

	assert.Equal(t, 1, ff.channels[0].aborts)
	assert.Equal(t, 1, report.Abandoned)
	assert.Zero(t, report.Completed)
	for _, ch := range ff.channels {
		assertReleasedOnce(t, ch)
	}
}

func TestRunStopsWhenRecreationFails(t *testing.T) {
	ff := &fakeFactory{plan: []*fakeChannel{{id: 0, failAt: 1}}, failFrom: 2}
	report, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv", "b.csv", "c.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recreate channel failed")

	require.Len(t, ff.channels, 1)
	assert.Equal(t, []string{"start:a.csv"}, ff.channels[0].calls)
	assertReleasedOnce(t, ff.channels[0])
	assert.Equal(t, 1, ff.channels[0].aborts)
	assert.Equal(t, 1, report.Abandoned)
	assert.Zero(t, report.Recreated)
}

func TestRunFailsWhenFirstChannelCannotBeCreated(t *testing.T) {
	ff := &fakeFactory{failFrom: 1}
	_, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create channel failed")
}

func TestRunSkipsDatasetWhenStartIsRefused(t *testing.T) {
	ff := &fakeFactory{plan: []*fakeChannel{{id: 0, refuse: true}}}
	report, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv", "b.csv"))
	require.NoError(t, err)

	assert.Equal(t, []string{"start:a.csv", "start:b.csv"}, ff.channels[0].calls)
	assert.Equal(t, 2, report.Skipped)
	assertReleasedOnce(t, ff.channels[0])
}

func TestRunClosesChannelWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ff := &fakeFactory{}
	_, err := NewDriver(ff.create, nil).Run(ctx, datasets("a.csv"))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, ff.channels, 1)
	assert.Empty(t, ff.channels[0].calls)
	assert.Equal(t, 1, ff.channels[0].closes)
}

func TestRunReleasesOnceWhenCloseFails(t *testing.T) {
	ff := &fakeFactory{plan: []*fakeChannel{{id: 0, closeErr: errors.New("already gone")}}}
	_, err := NewDriver(ff.create, nil).Run(context.Background(), datasets("a.csv"))
	require.NoError(t, err)
	assertReleasedOnce(t, ff.channels[0])
}
