// Package progress fans out per-run progress events from long-running
// calculations to any number of live subscribers.
package progress

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is one progress update for a run.
type Event struct {
	RunID       string  `json:"run_id"`
	CurrentStep int     `json:"current_step"`
	TotalSteps  int     `json:"total_steps"`
	Message     string  `json:"message"`
	Percentage  float64 `json:"percentage"`
}

// NewEvent builds an event with its percentage derived from the step counts.
func NewEvent(runID string, current, total int, message string) Event {
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	return Event{
		RunID:       runID,
		CurrentStep: current,
		TotalSteps:  total,
		Message:     message,
		Percentage:  pct,
	}
}

// subscriberBuffer bounds each subscriber channel. A slow consumer drops
// updates rather than stalling the producing calculation.
const subscriberBuffer = 16

// Broadcaster routes progress events to subscribers by run ID. Publishing
// never blocks: events for runs nobody watches are dropped, and a subscriber
// with a full buffer misses that event. Safe for concurrent use.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Event
	nextID int
	log    zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[int]chan Event),
		log:  log.With().Str("component", "progress").Logger(),
	}
}

// Subscribe registers interest in one run's events. The returned cancel
// function unregisters the subscriber and closes the channel; it is safe to
// call more than once.
func (b *Broadcaster) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[int]chan Event)
	}
	id := b.nextID
	b.nextID++
	b.subs[runID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if runSubs, ok := b.subs[runID]; ok {
				delete(runSubs, id)
				if len(runSubs) == 0 {
					delete(b.subs, runID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its run. Events never
// cross runs.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			b.log.Debug().
				Str("run_id", ev.RunID).
				Int("current_step", ev.CurrentStep).
				Msg("Progress event dropped for slow subscriber")
		}
	}
}

// SubscriberCount reports the number of live subscribers for a run.
func (b *Broadcaster) SubscriberCount(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID])
}
