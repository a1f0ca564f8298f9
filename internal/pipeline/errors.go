package pipeline

import "errors"

var (
	// ErrQueueFull is returned when the engine's intake queue is at capacity.
	ErrQueueFull = errors.New("pipeline queue is full")

	// ErrTimeout is returned when waiting for a ticket's result times out.
	ErrTimeout = errors.New("timeout waiting for pipeline result")

	// ErrUnknownStage is returned when a task names a stage with no
	// registered Stage implementation.
	ErrUnknownStage = errors.New("no stage registered for this name")

	// ErrStagePrecondition is returned by a Stage when the listing is not
	// yet in a state the stage can act on (e.g. normalize running before
	// parse has completed) — treated as a retryable condition, not a bug.
	ErrStagePrecondition = errors.New("stage precondition not met")
)
