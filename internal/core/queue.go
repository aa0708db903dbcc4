package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vovakirdan/ircbot/internal/proto"
)

// OverflowPolicy decides what happens when a capped queue is full.
type OverflowPolicy int

const (
	// OverflowReject refuses the new command with ErrQueueFull.
	OverflowReject OverflowPolicy = iota
	// OverflowDropNewest silently discards the new command.
	OverflowDropNewest
)

// ParseOverflowPolicy maps "reject" and "drop" to a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "reject":
		return OverflowReject, nil
	case "drop", "drop_newest":
		return OverflowDropNewest, nil
	default:
		return OverflowReject, fmt.Errorf("unknown queue overflow policy %q", s)
	}
}

// Outbound is a queued command and the time it was enqueued.
type Outbound struct {
	Line     proto.Line
	Enqueued time.Time
}

// Queue is the FIFO throttle for outbound commands. Any number of producers may
// Enqueue; exactly one Run loop drains it, writing at most one line per interval.
type Queue struct {
	interval time.Duration
	limit    int
	policy   OverflowPolicy

	mu      sync.Mutex
	items   []Outbound
	dropped int
	running bool
}

// NewQueue builds a queue. limit <= 0 means unbounded.
func NewQueue(interval time.Duration, limit int, policy OverflowPolicy) *Queue {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Queue{interval: interval, limit: limit, policy: policy}
}

// Enqueue appends line to the tail.
func (q *Queue) Enqueue(line proto.Line) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.items) >= q.limit {
		q.dropped++
		if q.policy == OverflowDropNewest {
			return nil
		}
		return ErrQueueFull
	}
	q.items = append(q.items, Outbound{Line: line, Enqueued: time.Now()})
	return nil
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many commands overflowed since the last Reset.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Reset discards every pending command and returns how many were dropped.
func (q *Queue) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.dropped = 0
	return n
}

func (q *Queue) pop() (Outbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Outbound{}, false
	}
	item := q.items[0]
	q.items[0] = Outbound{}
	q.items = q.items[1:]
	return item, true
}

// Run sends one command per tick to w until ctx is done or a write fails.
// A failed command is not requeued; the error wraps ErrTransport.
func (q *Queue) Run(ctx context.Context, w io.Writer) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already has a consumer")
	}
	q.running = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			item, ok := q.pop()
			if !ok {
				continue
			}
			if _, err := w.Write(item.Line.Bytes()); err != nil {
				return fmt.Errorf("%w: write %s: %w", ErrTransport, item.Line.Verb(), err)
			}
		}
	}
}
