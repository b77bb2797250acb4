package pollengine

import "github.com/cheolwanpark/leadsignal/engine/internal/db"

// PollStats is the final tally OnComplete reports, mirroring the counters
// persisted on the PollJob row.
type PollStats struct {
	SubredditsPolled     int
	PostsFetched         int
	PostsScored          int
	LeadsCreated         int
	LeadsDeleted         int
	SuggestionsGenerated int
}

func statsFromJob(job *db.PollJob) PollStats {
	return PollStats{
		SubredditsPolled:     job.SubredditsPolled,
		PostsFetched:         job.PostsFetched,
		PostsScored:          job.PostsScored,
		LeadsCreated:         job.LeadsCreated,
		LeadsDeleted:         job.LeadsDeleted,
		SuggestionsGenerated: job.SuggestionsGenerated,
	}
}

// Callbacks receives progress events during a poll run. Implementations
// must be safe for concurrent use: OnSubredditFetched may be called from
// multiple goroutines during Phase 1.
type Callbacks interface {
	OnPhase(phase string)
	OnSubredditFetched(name string, added int, err error)
	OnBatchScored(done, total int)
	// OnLeadCreated fires once per Lead surviving Phase 4 cleanup.
	OnLeadCreated(lead db.Lead)
	// OnComplete fires once, after finalize, on a successful run.
	OnComplete(stats PollStats)
	// OnError fires once, in place of OnComplete, on a failed run.
	OnError(msg string)
}

// NoopCallbacks discards every event; the default when a caller doesn't
// need progress reporting.
type NoopCallbacks struct{}

func (NoopCallbacks) OnPhase(phase string)                                {}
func (NoopCallbacks) OnSubredditFetched(name string, added int, err error) {}
func (NoopCallbacks) OnBatchScored(done, total int)                       {}
func (NoopCallbacks) OnLeadCreated(lead db.Lead)                          {}
func (NoopCallbacks) OnComplete(stats PollStats)                          {}
func (NoopCallbacks) OnError(msg string)                                  {}
