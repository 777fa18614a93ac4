package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/feed"
	"servio/marketplace-core/internal/metrics"
	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/repository"
)

// Counts is the badge state for one user.
type Counts struct {
	UnreadMessages int `json:"unread_messages"`
	PendingHires   int `json:"pending_hires"`
}

// seenEventLimit bounds the per-counter duplicate-detection window.
const seenEventLimit = 1024

// NotificationHub is the single per-process source of truth for badge
// counts. It holds exactly one change-feed subscription per collection and
// fans events out to refcounted per-user counters; every consumer reads
// from the same counter instead of opening its own subscription.
type NotificationHub struct {
	broker   feed.Broker
	messages repository.MessageRepository
	hires    repository.HireRepository
	logger   *logrus.Logger

	mu       sync.Mutex
	counters map[string]*Counter
	subs     []feed.Subscription
}

func NewNotificationHub(
	broker feed.Broker,
	messages repository.MessageRepository,
	hires repository.HireRepository,
	logger *logrus.Logger,
) *NotificationHub {
	return &NotificationHub{
		broker:   broker,
		messages: messages,
		hires:    hires,
		logger:   logger,
		counters: make(map[string]*Counter),
	}
}

// Start opens the underlying feed subscriptions. Must be called once before
// Acquire.
func (h *NotificationHub) Start(ctx context.Context) error {
	msgSub, err := h.broker.Subscribe(ctx, feed.CollectionMessages, h.onMessageEvent)
	if err != nil {
		return err
	}
	hireSub, err := h.broker.Subscribe(ctx, feed.CollectionHires, h.onHireEvent)
	if err != nil {
		_ = msgSub.Close()
		return err
	}

	h.mu.Lock()
	h.subs = []feed.Subscription{msgSub, hireSub}
	h.mu.Unlock()
	return nil
}

// Close drops the feed subscriptions and all counters.
func (h *NotificationHub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	counters := h.counters
	h.counters = make(map[string]*Counter)
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	for _, c := range counters {
		c.closeSubscribers()
	}
}

// Acquire returns the counter for userID, creating it for the first
// consumer. A counter is handed out only after at least one full compute
// has completed: an acquirer that finds the initial compute still in
// flight, or failed, runs the resync itself instead of trusting it.
// Every successful Acquire must be paired with a Release.
func (h *NotificationHub) Acquire(ctx context.Context, userID string) (*Counter, error) {
	h.mu.Lock()
	c, ok := h.counters[userID]
	if !ok {
		c = newCounter()
		h.counters[userID] = c
	}
	c.refs++
	h.mu.Unlock()

	if !c.synced() {
		if err := h.Resync(ctx, userID); err != nil {
			h.Release(userID)
			return nil, err
		}
	}
	return c, nil
}

// Release detaches one consumer. The counter is discarded when the last
// consumer goes away.
func (h *NotificationHub) Release(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.counters[userID]
	if !ok {
		return
	}
	c.refs--
	if c.refs <= 0 {
		delete(h.counters, userID)
		c.closeSubscribers()
	}
}

// Resync replaces the counter's state with ground truth from the backing
// store. It is the drift fallback: incremental updates are never trusted
// indefinitely, a reconnecting consumer calls this instead of reconciling
// accumulated deltas.
func (h *NotificationHub) Resync(ctx context.Context, userID string) error {
	unread, err := h.messages.ListUnreadIDs(ctx, userID)
	if err != nil {
		return err
	}
	pending, err := h.hires.ListPendingIDs(ctx, userID)
	if err != nil {
		return err
	}

	if c := h.lookup(userID); c != nil {
		c.replace(unread, pending)
	}
	return nil
}

func (h *NotificationHub) lookup(userID string) *Counter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counters[userID]
}

func (h *NotificationHub) onMessageEvent(ev feed.Event) {
	var state feed.MessageState
	if err := json.Unmarshal(ev.Record, &state); err != nil {
		h.logger.WithError(err).Warn("Dropping malformed message event")
		return
	}
	metrics.FeedEventsDispatched.WithLabelValues(feed.CollectionMessages).Inc()

	c := h.lookup(state.RecipientID)
	if c == nil || c.seenBefore(ev.ID) {
		return
	}
	if state.IsRead {
		c.removeUnread(state.ID)
	} else {
		c.addUnread(state.ID)
	}
}

func (h *NotificationHub) onHireEvent(ev feed.Event) {
	var state feed.HireState
	if err := json.Unmarshal(ev.Record, &state); err != nil {
		h.logger.WithError(err).Warn("Dropping malformed hire event")
		return
	}
	metrics.FeedEventsDispatched.WithLabelValues(feed.CollectionHires).Inc()

	c := h.lookup(state.ProviderID)
	if c == nil || c.seenBefore(ev.ID) {
		return
	}
	if state.Status == string(models.HireStatusPending) {
		c.addPending(state.ID)
	} else {
		c.removePending(state.ID)
	}
}

// Counter tracks one user's badge state. Counts are backed by id-sets, so a
// replayed or duplicated event is a no-op and a count can never go below
// zero.
type Counter struct {
	mu          sync.Mutex
	unread      map[string]struct{}
	pending     map[string]struct{}
	seen        map[string]struct{}
	seenOrder   []string
	subscribers map[chan Counts]struct{}
	refs        int
	syncedOnce  bool
}

func newCounter() *Counter {
	return &Counter{
		unread:      make(map[string]struct{}),
		pending:     make(map[string]struct{}),
		seen:        make(map[string]struct{}),
		subscribers: make(map[chan Counts]struct{}),
	}
}

// synced reports whether a full compute has completed at least once.
func (c *Counter) synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncedOnce
}

// Snapshot returns the current counts.
func (c *Counter) Snapshot() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countsLocked()
}

// Subscribe returns a channel receiving the counts after every change.
// Delivery is latest-wins: a slow consumer observes the newest state, not
// every intermediate one.
func (c *Counter) Subscribe() chan Counts {
	ch := make(chan Counts, 1)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.countsLocked()
	c.mu.Unlock()
	return ch
}

// Unsubscribe detaches and closes a channel returned by Subscribe.
func (c *Counter) Unsubscribe(ch chan Counts) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribers[ch]; ok {
		delete(c.subscribers, ch)
		close(ch)
	}
}

// seenBefore records the event id and reports whether it was already seen.
func (c *Counter) seenBefore(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[eventID]; dup {
		return true
	}
	c.seen[eventID] = struct{}{}
	c.seenOrder = append(c.seenOrder, eventID)
	if len(c.seenOrder) > seenEventLimit {
		oldest := c.seenOrder[0]
		c.seenOrder = c.seenOrder[1:]
		delete(c.seen, oldest)
	}
	return false
}

func (c *Counter) addUnread(id string)    { c.apply(func() { c.unread[id] = struct{}{} }) }
func (c *Counter) removeUnread(id string) { c.apply(func() { delete(c.unread, id) }) }
func (c *Counter) addPending(id string)   { c.apply(func() { c.pending[id] = struct{}{} }) }
func (c *Counter) removePending(id string) {
	c.apply(func() { delete(c.pending, id) })
}

func (c *Counter) replace(unread, pending []string) {
	c.apply(func() {
		c.syncedOnce = true
		c.unread = make(map[string]struct{}, len(unread))
		for _, id := range unread {
			c.unread[id] = struct{}{}
		}
		c.pending = make(map[string]struct{}, len(pending))
		for _, id := range pending {
			c.pending[id] = struct{}{}
		}
	})
}

func (c *Counter) apply(mutate func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.countsLocked()
	mutate()
	after := c.countsLocked()
	if after == before {
		return
	}
	for ch := range c.subscribers {
		select {
		case ch <- after:
		default:
			// Replace the stale value so the consumer sees the newest state.
			select {
			case <-ch:
			default:
			}
			ch <- after
		}
	}
}

func (c *Counter) countsLocked() Counts {
	return Counts{UnreadMessages: len(c.unread), PendingHires: len(c.pending)}
}

func (c *Counter) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = make(map[chan Counts]struct{})
}
