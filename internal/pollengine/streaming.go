package pollengine

import (
	"context"
	"errors"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

// Event is one progress update emitted by RunPollStreaming. Exactly one
// event on the channel has Done=true, carrying the run's final outcome.
type Event struct {
	Phase          string
	Subreddit      string
	SubredditAdded int
	SubredditErr   error
	BatchesDone    int
	BatchesTotal   int
	Lead           *db.Lead
	Stats          *PollStats
	Done           bool
	Job            *db.PollJob
	Err            error
}

type channelCallbacks struct {
	ch chan<- Event
}

func (c *channelCallbacks) OnPhase(phase string) {
	c.ch <- Event{Phase: phase}
}

func (c *channelCallbacks) OnSubredditFetched(name string, added int, err error) {
	c.ch <- Event{Phase: "fetch", Subreddit: name, SubredditAdded: added, SubredditErr: err}
}

func (c *channelCallbacks) OnBatchScored(done, total int) {
	c.ch <- Event{Phase: "score", BatchesDone: done, BatchesTotal: total}
}

func (c *channelCallbacks) OnLeadCreated(lead db.Lead) {
	c.ch <- Event{Phase: "cleanup", Lead: &lead}
}

func (c *channelCallbacks) OnComplete(stats PollStats) {
	c.ch <- Event{Phase: "complete", Stats: &stats}
}

func (c *channelCallbacks) OnError(msg string) {
	c.ch <- Event{Phase: "error", Err: errors.New(msg)}
}

// RunPollStreaming runs RunPoll in the background and streams progress
// events on the returned channel, which is closed after the final event.
func (e *Engine) RunPollStreaming(ctx context.Context, campaignID string, trigger db.PollJobTrigger) <-chan Event {
	ch := make(chan Event, 32)
	go func() {
		defer close(ch)
		cb := &channelCallbacks{ch: ch}
		job, err := e.RunPoll(ctx, campaignID, trigger, cb)
		ch <- Event{Done: true, Job: job, Err: err}
	}()
	return ch
}
