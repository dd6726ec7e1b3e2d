package captions

import (
	"encoding/json"
	"sync"
)

// Aggregator merges the unordered stream of caption events into per-speaker
// transcripts. It grows for the lifetime of a call and is discarded wholesale
// on teardown; there is no deduplication and no size bound.
type Aggregator struct {
	mu        sync.RWMutex
	all       []Event
	bySpeaker map[string][]Event
	speakers  []string // first-seen order
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		bySpeaker: make(map[string][]Event),
	}
}

// Record appends the event to the full transcript and to the partition of
// its speaker.
func (a *Aggregator) Record(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, seen := a.bySpeaker[ev.Speaker]; !seen {
		a.speakers = append(a.speakers, ev.Speaker)
	}
	a.all = append(a.all, ev)
	a.bySpeaker[ev.Speaker] = append(a.bySpeaker[ev.Speaker], ev)
}

// Len returns the total number of recorded events.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.all)
}

// Speakers returns the speaker identities in first-seen order.
func (a *Aggregator) Speakers() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.speakers))
	copy(out, a.speakers)
	return out
}

// BySpeaker returns a copy of one speaker's transcript in receipt order.
func (a *Aggregator) BySpeaker(speaker string) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	events := a.bySpeaker[speaker]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Events returns a copy of the full transcript in receipt order.
func (a *Aggregator) Events() []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Event, len(a.all))
	copy(out, a.all)
	return out
}

// Export serializes the full transcript as a JSON array in receipt order.
// It is side-effect free and may be called at any time, including mid-call.
func (a *Aggregator) Export() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.all) == 0 {
		return json.Marshal([]Event{})
	}
	return json.MarshalIndent(a.all, "", "  ")
}
