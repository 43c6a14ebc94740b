package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	vatperioddomain "github.com/smallbiznis/atelier/internal/vatperiod/domain"
)

type stubPeriodService struct {
	rollovers []time.Time
	err       error
}

func (s *stubPeriodService) CurrentPeriodAt(t time.Time) vatperioddomain.Period {
	return vatperioddomain.Period{}
}

func (s *stubPeriodService) Aggregate(context.Context, time.Time, time.Time) (vatperioddomain.Totals, error) {
	return vatperioddomain.Totals{}, nil
}

func (s *stubPeriodService) Rollover(_ context.Context, today time.Time) (*vatperioddomain.Record, error) {
	s.rollovers = append(s.rollovers, today)
	if s.err != nil {
		return nil, s.err
	}
	return &vatperioddomain.Record{PeriodMonth: int(today.Month()), PeriodYear: today.Year()}, nil
}

func (s *stubPeriodService) Archive(context.Context, int, int) (*vatperioddomain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPeriodService) GetRecord(context.Context, int, int) (*vatperioddomain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPeriodService) Snapshot(context.Context, time.Time) (vatperioddomain.Period, vatperioddomain.Totals, error) {
	return vatperioddomain.Period{}, vatperioddomain.Totals{}, nil
}

func (s *stubPeriodService) AnnualTotal(context.Context, int) (int64, error) {
	return 0, nil
}

func newTestScheduler(t *testing.T, stub *stubPeriodService) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.NewFakeClock(time.Date(2026, time.May, 1, 6, 0, 0, 0, time.UTC))
	sched, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      fakeClock,
		VATPeriods: stub,
		JobMetrics: obsmetrics.Jobs(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return sched, fakeClock
}

func TestRunOnce_RollsOverCurrentDay(t *testing.T) {
	stub := &stubPeriodService{}
	sched, fakeClock := newTestScheduler(t, stub)

	require.NoError(t, sched.RunOnce(context.Background()))
	require.Len(t, stub.rollovers, 1)
	assert.True(t, stub.rollovers[0].Equal(fakeClock.Now()))
}

func TestRunOnce_PropagatesRolloverError(t *testing.T) {
	stub := &stubPeriodService{err: errors.New("database down")}
	sched, _ := newTestScheduler(t, stub)

	err := sched.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Len(t, stub.rollovers, 1)
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

type countingPeriodService struct {
	stubPeriodService
	mu    sync.Mutex
	count int
}

func (s *countingPeriodService) Rollover(_ context.Context, today time.Time) (*vatperioddomain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return &vatperioddomain.Record{PeriodMonth: int(today.Month()), PeriodYear: today.Year()}, nil
}

func (s *countingPeriodService) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func TestStart_CancelsLoopOnShutdown(t *testing.T) {
	stub := &countingPeriodService{}
	fakeClock := clock.NewFakeClock(time.Date(2026, time.May, 1, 6, 0, 0, 0, time.UTC))
	sched, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      fakeClock,
		VATPeriods: stub,
		JobMetrics: obsmetrics.Jobs(prometheus.NewRegistry()),
		Config:     Config{RunInterval: 2 * time.Millisecond},
	})
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	Start(lc, config.Config{SchedulerEnabled: true}, sched)
	lc.RequireStart()

	require.Eventually(t, func() bool { return stub.calls() >= 2 }, time.Second, time.Millisecond)

	lc.RequireStop()

	// Once stopped the loop must not tick again.
	time.Sleep(20 * time.Millisecond)
	settled := stub.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, stub.calls())
}
