package builds

// State is the phase of a single upload.
type State string

const (
	StateReceiving  State = "receiving"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)
