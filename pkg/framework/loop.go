package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the default period between iterations.
const DefaultInterval = 10 * time.Millisecond

// Loop runs controllers cooperatively by priority level. Flash polling,
// request handling and expiry share one goroutine, so controllers need
// no locking against each other.
type Loop struct {
	Interval time.Duration
	Clock    Clock

	levels  [PriorityLevels]level
	runners []Runnable

	lock    sync.Mutex
	pending []Message
	wakeUp  chan struct{}
}

// LoopAdder registers its controllers and runners with a Loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type level struct {
	controllers []Controller

	lock  sync.Mutex
	hooks []Controller
}

// NewLoop creates a Loop on the system clock.
func NewLoop() *Loop {
	return NewLoopWithClock(SystemClock{})
}

// NewLoopWithClock creates a Loop reading time from clock.
func NewLoopWithClock(clock Clock) *Loop {
	return &Loop{Interval: DefaultInterval, Clock: clock, wakeUp: make(chan struct{}, 1)}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a priority level. Controllers
// that are also Runnable are started by Run.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lv := &l.levels[priorityLevel]
	lv.controllers = append(lv.controllers, ctls...)
	for _, ctl := range ctls {
		if r, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, r)
		}
	}
	return l
}

// AddRunnable adds runners started along with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run starts the runners and iterates every Interval, or sooner when
// triggered, until ctx is done or a runner fails.
func (l *Loop) Run(ctx context.Context) error {
	l.init()
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer func() {
		runner.Stop()
		runner.Wait()
	}()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-l.wakeUp:
		}
		l.iterate(ctx)
	}
}

// Step runs a single iteration synchronously without starting runners.
func (l *Loop) Step(ctx context.Context) {
	l.init()
	l.iterate(ctx)
}

// Now returns the loop time.
func (l *Loop) Now() time.Time {
	return ClockOrSystem(l.Clock).Now()
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	lv := &l.levels[priorityLevel]
	lv.lock.Lock()
	lv.hooks = append(lv.hooks, hooks...)
	lv.lock.Unlock()
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.pending = append(l.pending, msg)
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	l.init()
	select {
	case l.wakeUp <- struct{}{}:
	default:
	}
}

func (l *Loop) init() {
	l.lock.Lock()
	if l.wakeUp == nil {
		l.wakeUp = make(chan struct{}, 1)
	}
	l.lock.Unlock()
}

func (l *Loop) iterate(ctx context.Context) {
	it := &iteration{Loop: l, ctx: ctx, time: l.Now()}
	l.lock.Lock()
	it.msgs, l.pending = l.pending, nil
	l.lock.Unlock()
	for n := range l.levels {
		it.level = n
		l.levels[n].run(it)
	}
}

func (lv *level) run(it *iteration) {
	it.runAll(lv.controllers)
	lv.lock.Lock()
	hooks := lv.hooks
	lv.hooks = nil
	lv.lock.Unlock()
	it.runAll(hooks)
}

// iteration implements ControlContext and MessageStore.
type iteration struct {
	*Loop
	ctx   context.Context
	time  time.Time
	level int
	msgs  []Message
}

func (it *iteration) Context() context.Context { return it.ctx }
func (it *iteration) Time() time.Time           { return it.time }
func (it *iteration) PriorityLevel() int        { return it.level }
func (it *iteration) Messages() MessageStore    { return it }

func (it *iteration) PostRun(hooks ...Controller) {
	it.PostRunAt(it.level, hooks...)
}

func (it *iteration) runAll(ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(it); err != nil {
			glog.Errorf("controller error (priority %d): %v", it.level, err)
		}
	}
}

type messageVisit struct {
	msg   Message
	taken bool
	stop  bool
}

func (v *messageVisit) CurrentMessage() Message { return v.msg }
func (v *messageVisit) MessageTaken()           { v.taken = true }
func (v *messageVisit) StopProcessing()         { v.stop = true }

// ProcessMessages implements MessageStore.
func (it *iteration) ProcessMessages(proc MessageProcessor) {
	msgs := it.msgs
	kept := msgs[:0:0]
	for n, msg := range msgs {
		v := &messageVisit{msg: msg}
		proc.ProcessMessage(v)
		if !v.taken {
			kept = append(kept, msg)
		}
		if v.stop {
			kept = append(kept, msgs[n+1:]...)
			break
		}
	}
	it.msgs = kept
}
