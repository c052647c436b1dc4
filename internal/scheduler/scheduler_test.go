package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"photopost-bot/internal/database/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFireTimes(t *testing.T) {
	times, err := ParseFireTimes([]string{"09:00", "18:30"}, 7)
	require.NoError(t, err)
	require.Len(t, times, 2)

	assert.Equal(t, FireTime{Local: "09:00", Hour: 2, Minute: 0}, times[0])
	assert.Equal(t, FireTime{Local: "18:30", Hour: 11, Minute: 30}, times[1])
	assert.Equal(t, "0 0 2 * * *", times[0].CronSpec())
	assert.Equal(t, "0 30 11 * * *", times[1].CronSpec())
}

func TestParseFireTimesWraps(t *testing.T) {
	times, err := ParseFireTimes([]string{"03:15"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 20, times[0].Hour, "previous UTC day")

	times, err = ParseFireTimes([]string{"22:00"}, -5)
	require.NoError(t, err)
	assert.Equal(t, 3, times[0].Hour, "next UTC day")
}

func TestParseFireTimesInvalid(t *testing.T) {
	for _, raw := range []string{"9", "24:00", "12:60", "ab:cd", ""} {
		_, err := ParseFireTimes([]string{raw}, 0)
		assert.Error(t, err, raw)
	}
	_, err := ParseFireTimes(nil, 0)
	assert.Error(t, err)
}

type fakeCycler struct {
	triggers []string
	err      error
	deadline bool
}

func (f *fakeCycler) RunCycle(ctx context.Context, trigger string) (CycleReport, error) {
	f.triggers = append(f.triggers, trigger)
	_, f.deadline = ctx.Deadline()
	return CycleReport{}, f.err
}

func TestSchedulerTick(t *testing.T) {
	times, err := ParseFireTimes([]string{"09:00", "18:00"}, 7)
	require.NoError(t, err)

	cycler := &fakeCycler{}
	s, err := New(cycler, times, time.Minute)
	require.NoError(t, err)

	s.Tick(context.Background(), times[0])
	assert.Equal(t, []string{models.TriggerSchedule}, cycler.triggers)
	assert.True(t, cycler.deadline, "cycle runs with a bounded context")

	// Errors are logged, never propagated.
	cycler.err = ErrCycleInProgress
	s.Tick(context.Background(), times[1])
	cycler.err = errors.New("boom")
	s.Tick(context.Background(), times[1])
	assert.Len(t, cycler.triggers, 3)
}

func TestSchedulerStartStop(t *testing.T) {
	times, err := ParseFireTimes([]string{"09:00"}, 7)
	require.NoError(t, err)

	s, err := New(&fakeCycler{}, times, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCycleTimeout, s.timeout)
	assert.Len(t, s.cron.Entries(), 1)

	s.Start()
	s.Stop()
}

type blockingCycler struct {
	entered  chan struct{}
	release  chan struct{}
	finished chan struct{}
}

func (b *blockingCycler) RunCycle(context.Context, string) (CycleReport, error) {
	close(b.entered)
	<-b.release
	close(b.finished)
	return CycleReport{}, nil
}

func TestSchedulerStopWaitsForRunningTick(t *testing.T) {
	times, err := ParseFireTimes([]string{"09:00"}, 7)
	require.NoError(t, err)

	cycler := &blockingCycler{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	s, err := New(cycler, times, time.Minute)
	require.NoError(t, err)
	s.Start()

	go s.Tick(context.Background(), times[0])
	<-cycler.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(cycler.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
	select {
	case <-cycler.finished:
	default:
		t.Fatal("cycle did not finish before Stop returned")
	}
}

func TestSchedulerTickAfterStopIsSkipped(t *testing.T) {
	times, err := ParseFireTimes([]string{"09:00"}, 7)
	require.NoError(t, err)

	cycler := &fakeCycler{}
	s, err := New(cycler, times, time.Minute)
	require.NoError(t, err)
	s.Stop()

	s.Tick(context.Background(), times[0])
	assert.Empty(t, cycler.triggers)
}

func TestNewSchedulerRequiresCycler(t *testing.T) {
	_, err := New(nil, nil, 0)
	assert.Error(t, err)
}
