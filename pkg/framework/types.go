package framework

import (
	"context"
	"time"
)

// Named is implemented by runners that report a name in errors.
type Named interface {
	Name() string
}

// Runnable is a long running task, stopped by cancelling ctx.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is posted to the Loop and offered to the controllers of the
// next iteration.
type Message interface {
	NewMessage() Message
}

// Controller is run by the Loop on every iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext is handed to controllers for one iteration.
type ControlContext interface {
	LoopControl

	Context() context.Context
	// Time is the loop time sampled when the iteration started.
	Time() time.Time
	PriorityLevel() int
	// Messages holds what was posted before the iteration started.
	// Messages nobody takes are dropped once the iteration ends.
	Messages() MessageStore
	// PostRun runs hooks once after the controllers of the current
	// level. Hooks added from a hook run in the next iteration.
	PostRun(hooks ...Controller)
}

// LoopControl is the part of the Loop usable outside an iteration.
type LoopControl interface {
	PostRunAt(priorityLevel int, hooks ...Controller)
	PostMessage(Message)
	// TriggerNext wakes the loop up for another iteration right away.
	TriggerNext()
}

// MessageStore gives controllers access to the pending messages.
type MessageStore interface {
	ProcessMessages(MessageProcessor)
}

// MessageProcessor visits pending messages in posting order.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext is the visit of a single message.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message so later levels never see it.
	MessageTaken()
	// StopProcessing ends the visit, keeping the remaining messages.
	StopProcessing()
}

// PriorityLevels is the number of priority levels. Level 0 runs first.
const PriorityLevels int = 16

// Priority levels of an iteration, in running order.
const (
	// PrLvPoll drains flash media so completion callbacks fire before
	// the requests of the same iteration look at the busy state.
	PrLvPoll int = 4
	// PrLvHandle serves requests from the mesh and the management API.
	PrLvHandle int = 8
	// PrLvSchedule fires delayed actions.
	PrLvSchedule int = 12
	// PrLvIdle persists state and reboots.
	PrLvIdle int = PriorityLevels - 1
	// PrLvExpire times out mesh requests nobody answered.
	PrLvExpire = PrLvIdle
)
