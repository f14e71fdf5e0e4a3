package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Tier is the audience of a change signal. A public signal reaches
// everyone; a restricted signal reaches privileged listeners only.
type Tier string

const (
	// TierPublic signals catalog changes everyone may see.
	TierPublic Tier = "public"
	// TierRestricted signals changes for privileged listeners.
	TierRestricted Tier = "restricted"
)

// DefaultDebounce is the delay between the first mutation of a burst
// and the signal it produces.
const DefaultDebounce = 1500 * time.Millisecond

// subscriberBuffer is the channel depth per subscriber. A subscriber
// that falls this far behind drops signals instead of blocking the
// dispatcher.
const subscriberBuffer = 4

// Signal is one debounced "catalog changed" notification.
type Signal struct {
	Tier Tier      `json:"tier"`
	Time time.Time `json:"time"`
}

// Subscription is one listener's handle on the hub.
type Subscription struct {
	ID   uuid.UUID
	Tier Tier
	C    <-chan Signal

	ch chan Signal
}

// expiry identifies one timer firing. The generation lets the
// dispatcher discard a fire queued by a timer that was superseded
// after it had already expired.
type expiry struct {
	tier Tier
	gen  uint64
}

// Hub coalesces bursts of catalog mutations into debounced refresh
// signals, at most one pending timer per tier. Producers hand tiers to
// a single dispatch goroutine over a channel; the timers are confined
// to that goroutine and need no lock.
type Hub struct {
	delay time.Duration

	scheduleCh chan Tier
	fireCh     chan expiry
	stopCh     chan struct{}
	doneCh     chan struct{}

	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

// NewHub creates a Hub with the given debounce delay. A non-positive
// delay falls back to the default.
func NewHub(delay time.Duration) *Hub {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Hub{
		delay:      delay,
		scheduleCh: make(chan Tier, 64),
		fireCh:     make(chan expiry, 2),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		subs:       make(map[uuid.UUID]*Subscription),
	}
}

// Start launches the dispatch goroutine.
func (h *Hub) Start() {
	go h.run()
}

// Stop cancels pending timers and stops the dispatcher. Subscriber
// channels are closed.
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	metrics.NotifySubscribers.Reset()
}

// Schedule requests a change signal for tier. Bursts within the
// debounce window collapse into one signal. Public implies restricted
// visibility, so a restricted request while a public timer is pending
// piggybacks on it, and a public request cancels a pending restricted
// timer and replaces it.
func (h *Hub) Schedule(tier Tier) {
	metrics.NotifySchedulesTotal.WithLabelValues(string(tier)).Inc()
	select {
	case h.scheduleCh <- tier:
	case <-h.stopCh:
	}
}

// run owns the per-tier debounce timers. It is the only goroutine that
// touches them.
func (h *Hub) run() {
	defer close(h.doneCh)

	timers := make(map[Tier]*time.Timer)
	gens := make(map[Tier]uint64)

	for {
		select {
		case tier := <-h.scheduleCh:
			if tier == TierRestricted && timers[TierPublic] != nil {
				// The pending public signal already covers
				// restricted listeners.
				continue
			}
			if tier == TierPublic && timers[TierRestricted] != nil {
				// The public signal reaches restricted
				// listeners too, so the narrower timer is
				// superseded.
				timers[TierRestricted].Stop()
				timers[TierRestricted] = nil
				gens[TierRestricted]++
			}
			if t := timers[tier]; t != nil {
				t.Stop()
			}
			gens[tier]++
			fire := expiry{tier: tier, gen: gens[tier]}
			timers[tier] = time.AfterFunc(h.delay, func() {
				select {
				case h.fireCh <- fire:
				case <-h.stopCh:
				}
			})

		case fire := <-h.fireCh:
			if fire.gen != gens[fire.tier] {
				// Stale expiry from a timer that was superseded
				// after it had already queued its fire.
				continue
			}
			timers[fire.tier] = nil
			h.emit(fire.tier)

		case <-h.stopCh:
			for _, t := range timers {
				if t != nil {
					t.Stop()
				}
			}
			return
		}
	}
}

// emit delivers one signal to every subscriber the tier reaches: a
// public signal reaches public and restricted listeners alike, a
// restricted signal reaches restricted listeners only.
func (h *Hub) emit(tier Tier) {
	sig := Signal{Tier: tier, Time: time.Now().UTC()}
	metrics.NotifySignalsTotal.WithLabelValues(string(tier)).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if tier == TierRestricted && sub.Tier != TierRestricted {
			continue
		}
		select {
		case sub.ch <- sig:
		default:
			metrics.NotifyDroppedTotal.WithLabelValues(string(sub.Tier)).Inc()
			logging.Debug("Dropped change signal for slow subscriber %s", sub.ID)
		}
	}
}

// Subscribe registers a listener for the given tier and returns its
// subscription handle.
func (h *Hub) Subscribe(tier Tier) *Subscription {
	ch := make(chan Signal, subscriberBuffer)
	sub := &Subscription{
		ID:   uuid.New(),
		Tier: tier,
		C:    ch,
		ch:   ch,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	metrics.NotifySubscribers.WithLabelValues(string(tier)).Inc()
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()

	if ok {
		metrics.NotifySubscribers.WithLabelValues(string(sub.Tier)).Dec()
	}
}
