package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is a run lifecycle message delivered to subscribers.
type Notification struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	RunID     string                 `json:"run_id,omitempty"`
	Year      int                    `json:"simulation_year,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Notification types.
const (
	NotifyRunStarted        = "run.started"
	NotifyRunCompleted      = "run.completed"
	NotifyYearCompleted     = "year.completed"
	NotifyYearFailed        = "year.failed"
	NotifyTransitionWarning = "transition.warning"
	NotifyOrphansRemoved    = "storage.orphans_removed"
)

// Notification levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Subscriber handles a notification.
type Subscriber func(n Notification)

// Filter reports whether a notification should be delivered.
type Filter func(n Notification) bool

// Publisher fans notifications out to subscribers, synchronously or from a
// background goroutine.
type Publisher struct {
	config      EventsConfig
	buffer      chan Notification
	subscribers []subscriberEntry
	mu          sync.RWMutex
	wg          sync.WaitGroup
	done        chan struct{}
	closeOnce   sync.Once
}

type subscriberEntry struct {
	subscriber Subscriber
	filter     Filter
}

// NewPublisher creates a publisher with the given configuration.
func NewPublisher(cfg EventsConfig) *Publisher {
	p := &Publisher{config: cfg, done: make(chan struct{})}
	if !cfg.Enabled {
		return p
	}

	if cfg.EnableAsync {
		p.buffer = make(chan Notification, cfg.BufferSize)
		p.wg.Add(1)
		go p.process()
	}
	return p
}

// Subscribe registers a subscriber. A nil filter accepts everything.
func (p *Publisher) Subscribe(s Subscriber, filter Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, subscriberEntry{subscriber: s, filter: filter})
}

// Publish delivers a notification. In async mode it fails when the buffer is full.
func (p *Publisher) Publish(n Notification) error {
	if !p.config.Enabled {
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	if p.buffer == nil {
		p.deliver(n)
		return nil
	}

	select {
	case <-p.done:
		return fmt.Errorf("notification publisher stopped")
	default:
	}
	select {
	case p.buffer <- n:
		return nil
	default:
		return fmt.Errorf("notification buffer full, %s dropped", n.Type)
	}
}

// RunStarted publishes a run start.
func (p *Publisher) RunStarted(runID string, startYear, endYear int) error {
	return p.Publish(Notification{
		Type:    NotifyRunStarted,
		RunID:   runID,
		Message: fmt.Sprintf("run %s started for %d-%d", runID, startYear, endYear),
		Level:   LevelInfo,
		Data: map[string]interface{}{
			"start_year": startYear,
			"end_year":   endYear,
		},
	})
}

// RunCompleted publishes a run outcome.
func (p *Publisher) RunCompleted(runID, status string, duration time.Duration) error {
	level := LevelInfo
	if status != "succeeded" {
		level = LevelError
	}
	return p.Publish(Notification{
		Type:    NotifyRunCompleted,
		RunID:   runID,
		Message: fmt.Sprintf("run %s finished: %s", runID, status),
		Level:   level,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// YearCompleted publishes a successfully materialized year.
func (p *Publisher) YearCompleted(runID string, year, active, events int) error {
	return p.Publish(Notification{
		Type:    NotifyYearCompleted,
		RunID:   runID,
		Year:    year,
		Message: fmt.Sprintf("year %d completed with %d active employees", year, active),
		Level:   LevelInfo,
		Data: map[string]interface{}{
			"active": active,
			"events": events,
		},
	})
}

// YearFailed publishes a failed year.
func (p *Publisher) YearFailed(runID string, year int, reason string) error {
	return p.Publish(Notification{
		Type:    NotifyYearFailed,
		RunID:   runID,
		Year:    year,
		Message: fmt.Sprintf("year %d failed: %s", year, reason),
		Level:   LevelError,
		Data:    map[string]interface{}{"reason": reason},
	})
}

// TransitionWarning publishes a non-blocking transition check finding.
func (p *Publisher) TransitionWarning(runID string, year int, check, message string) error {
	return p.Publish(Notification{
		Type:    NotifyTransitionWarning,
		RunID:   runID,
		Year:    year,
		Message: message,
		Level:   LevelWarning,
		Data:    map[string]interface{}{"check": check},
	})
}

// OrphansRemoved publishes the result of an orphaned data cleanup.
func (p *Publisher) OrphansRemoved(runID string, rows int) error {
	return p.Publish(Notification{
		Type:    NotifyOrphansRemoved,
		RunID:   runID,
		Message: fmt.Sprintf("removed %d rows outside the simulation range", rows),
		Level:   LevelInfo,
		Data:    map[string]interface{}{"rows": rows},
	})
}

func (p *Publisher) process() {
	defer p.wg.Done()

	batch := make([]Notification, 0, p.batchSize())
	for {
		select {
		case n := <-p.buffer:
			batch = append(batch, n)
			if len(batch) >= p.batchSize() || len(p.buffer) == 0 {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-p.done:
			for {
				select {
				case n := <-p.buffer:
					batch = append(batch, n)
				default:
					p.flush(batch)
					return
				}
			}
		}
	}
}

func (p *Publisher) batchSize() int {
	if p.config.MaxBatchSize < 1 {
		return 1
	}
	return p.config.MaxBatchSize
}

func (p *Publisher) flush(batch []Notification) {
	for _, n := range batch {
		p.deliver(n)
	}
}

func (p *Publisher) deliver(n Notification) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, entry := range p.subscribers {
		if entry.filter != nil && !entry.filter(n) {
			continue
		}
		entry.subscriber(n)
	}
}

// Shutdown drains pending notifications and stops the publisher.
func (p *Publisher) Shutdown(ctx context.Context) error {
	if !p.config.Enabled {
		return nil
	}
	p.closeOnce.Do(func() { close(p.done) })

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification publisher shutdown timeout")
	}
}

// FilterByLevel accepts notifications at minLevel or above.
func FilterByLevel(minLevel string) Filter {
	levels := map[string]int{
		LevelInfo:    0,
		LevelWarning: 1,
		LevelError:   2,
	}
	floor := levels[minLevel]
	return func(n Notification) bool {
		return levels[n.Level] >= floor
	}
}

// FilterByType accepts notifications of the given types.
func FilterByType(types ...string) Filter {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(n Notification) bool {
		return set[n.Type]
	}
}
