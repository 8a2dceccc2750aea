package events

import "time"

// Job names.
const (
	JobDocuments = "documents"
	JobNews      = "news"
	JobPublish   = "publish"
	JobIngest    = "ingest"
)

// RunCompleteEvent is emitted when a job run finishes, successfully or not.
type RunCompleteEvent struct {
	Job       string        // one of the Job* constants
	RunID     string        // manifest run id or "" for jobs without one
	Prefix    string        // S3 prefix the run was mirrored to, if any
	Units     int           // documents, articles or pages processed
	Succeeded int           // units that ended in a good state
	Failed    int           // units that ended in an error state
	Duration  time.Duration // wall time of the run
	Timestamp time.Time     // when the run completed
	Err       error         // fatal error that aborted the run, if any
}

// OK reports whether the run completed without a fatal error.
func (e RunCompleteEvent) OK() bool {
	return e.Err == nil
}

// Sink receives run events.
type Sink interface {
	RunComplete(e RunCompleteEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(RunCompleteEvent)

// RunComplete calls f(e).
func (f SinkFunc) RunComplete(e RunCompleteEvent) {
	f(e)
}

// Multi fans an event out to several sinks, skipping nil ones.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e RunCompleteEvent) {
		for _, s := range sinks {
			if s != nil {
				s.RunComplete(e)
			}
		}
	})
}
