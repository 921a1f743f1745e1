package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testMsg struct {
	n int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestLoopPriorityOrder(t *testing.T) {
	l := NewLoop()
	var order []int
	for _, lv := range []int{PrLvExpire, PrLvPoll, PrLvSchedule, PrLvHandle} {
		lv := lv
		l.AddController(lv, ControlFunc(func(cc ControlContext) error {
			require.Equal(t, lv, cc.PriorityLevel())
			order = append(order, lv)
			return nil
		}))
	}
	l.Step(context.Background())
	require.Equal(t, []int{PrLvPoll, PrLvHandle, PrLvSchedule, PrLvExpire}, order)
}

func TestLoopMessages(t *testing.T) {
	clock := NewManualClock(time.Unix(100, 0))
	l := NewLoopWithClock(clock)
	var handled, seen []int
	l.AddController(PrLvHandle, ControlFunc(func(cc ControlContext) error {
		require.Equal(t, clock.Now(), cc.Time())
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			m := mc.CurrentMessage().(*testMsg)
			if m.n%2 == 0 {
				handled = append(handled, m.n)
				mc.MessageTaken()
			}
		}))
		return nil
	}))
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			seen = append(seen, mc.CurrentMessage().(*testMsg).n)
		}))
		return nil
	}))
	for n := 1; n <= 4; n++ {
		l.PostMessage(&testMsg{n: n})
	}
	l.Step(context.Background())
	require.Equal(t, []int{2, 4}, handled)
	require.Equal(t, []int{1, 3}, seen)

	// Messages not taken are dropped at the end of the iteration.
	handled, seen = nil, nil
	l.Step(context.Background())
	require.Empty(t, handled)
	require.Empty(t, seen)
}

func TestLoopStopProcessing(t *testing.T) {
	l := NewLoop()
	var first, later []int
	l.AddController(PrLvHandle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			first = append(first, mc.CurrentMessage().(*testMsg).n)
			mc.MessageTaken()
			mc.StopProcessing()
		}))
		return nil
	}))
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			later = append(later, mc.CurrentMessage().(*testMsg).n)
		}))
		return nil
	}))
	for n := 1; n <= 3; n++ {
		l.PostMessage(&testMsg{n: n})
	}
	l.Step(context.Background())
	require.Equal(t, []int{1}, first)
	require.Equal(t, []int{2, 3}, later)
}

func TestLoopPostRunHooks(t *testing.T) {
	l := NewLoop()
	var calls []string
	l.AddController(PrLvHandle, ControlFunc(func(cc ControlContext) error {
		calls = append(calls, "ctl")
		if len(calls) == 1 {
			cc.PostRun(ControlFunc(func(ControlContext) error {
				calls = append(calls, "hook")
				return nil
			}))
		}
		return errors.New("logged only")
	}))
	l.Step(context.Background())
	l.Step(context.Background())
	require.Equal(t, []string{"ctl", "hook", "ctl"}, calls)
}

func TestLoopRunStopsRunners(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Millisecond
	stopped := make(chan struct{})
	l.AddRunnable(RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}))
	ticks := make(chan struct{}, 1)
	l.AddController(PrLvIdle, ControlFunc(func(ControlContext) error {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	<-ticks
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	<-stopped
}

func TestRunnerStopsOnFailure(t *testing.T) {
	failure := errors.New("failed")
	r := NewRunner()
	r.Go(NamedRun("waiter", RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})), RunnableFunc(func(context.Context) error {
		return failure
	}))
	require.Equal(t, failure, r.Wait())
}

func TestRunWithContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithContextCancel(ctx, func() { close(unblock) }, func() error {
			<-unblock
			return nil
		})
	}()
	cancel()
	require.Equal(t, context.Canceled, <-errCh)

	require.Equal(t, errors.New("x"), RunWithContextCancel(context.Background(), nil, func() error {
		return errors.New("x")
	}))
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	first := errors.New("first")
	errs.Add(first)
	require.Equal(t, first, errs.Aggregate())
	errs.Add(nil, errors.New("second"))
	err := errs.Aggregate()
	require.Equal(t, "multiple errors:\n  first\n  second", err.Error())
	require.True(t, errors.Is(err, first))
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(time.Unix(10, 0))
	require.Equal(t, time.Unix(12, 0), c.Advance(2*time.Second))
	require.Equal(t, time.Unix(12, 0), c.Now())
	require.Equal(t, Clock(c), ClockOrSystem(c))
	require.Equal(t, Clock(SystemClock{}), ClockOrSystem(nil))
}
