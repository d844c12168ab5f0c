package session

// Scheduling constants
const (
	// Bounded hand-off between the capture loop and the pipeline
	// worker. A full queue blocks the next tick's hand-off; frames are
	// never dropped.
	FrameQueueSize = 8

	// Consecutive capture failures that abort the run as Failed.
	MaxConsecutiveCaptureFailures = 3
)
