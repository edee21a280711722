package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a payload to a topic. pkg/kafka.Producer satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	Service        string        // reported in every batch
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries that force a flush
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration
}

// AggregatedLogEntry is one distinct warn/error line and how often it fired.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload published on every flush. Entries are ordered by
// count, most frequent first.
type LogBatch struct {
	Service   string               `json:"service"`
	Host      string               `json:"host"`
	FlushedAt time.Time            `json:"flushed_at"`
	Entries   []AggregatedLogEntry `json:"entries"`
}

// LogCollector folds repeated warn and error lines into counted entries and
// publishes them every TimeInterval, or sooner once CountThreshold distinct
// entries are pending.
type LogCollector struct {
	cfg     CollectionConfig
	host    string
	mu      sync.Mutex
	pending map[uint64]*AggregatedLogEntry
	sends   sync.WaitGroup
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := *cfg
	if c.TimeInterval <= 0 {
		c.TimeInterval = 30 * time.Second
	}
	if c.CountThreshold <= 0 {
		c.CountThreshold = 100
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
	host, _ := os.Hostname()

	lc := &LogCollector{
		cfg:     c,
		host:    host,
		pending: make(map[uint64]*AggregatedLogEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go lc.loop()
	return lc
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now().UTC()
	key := entryKey(level, message, fields, caller)

	d.mu.Lock()
	if e, ok := d.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.pending[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch *LogBatch
	if len(d.pending) >= d.cfg.CountThreshold {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		d.sends.Add(1)
		go func() {
			defer d.sends.Done()
			d.publish(batch)
		}()
	}
}

// Flush publishes whatever is pending and waits for the send.
func (d *LogCollector) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

// Close stops the flush loop, publishes the remainder and waits for
// in-flight sends. It is safe to call more than once.
func (d *LogCollector) Close() {
	d.once.Do(func() {
		close(d.stop)
		<-d.done
		d.Flush()
		d.sends.Wait()
	})
}

func (d *LogCollector) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.stop:
			return
		}
	}
}

func (d *LogCollector) drainLocked() *LogBatch {
	if len(d.pending) == 0 {
		return nil
	}
	entries := make([]AggregatedLogEntry, 0, len(d.pending))
	for _, e := range d.pending {
		entries = append(entries, *e)
	}
	d.pending = make(map[uint64]*AggregatedLogEntry)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].FirstSeen.Before(entries[j].FirstSeen)
	})
	return &LogBatch{Service: d.cfg.Service, Host: d.host, FlushedAt: time.Now().UTC(), Entries: entries}
}

func (d *LogCollector) publish(b *LogBatch) {
	if d.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()
	// stderr, not the Logger: a failed publish must not re-enter the collector
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, b); err != nil {
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(b.Entries), d.cfg.Topic, err)
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(level))
	h.Write([]byte{0})
	h.Write([]byte(message))
	h.Write([]byte{0})
	h.Write([]byte(caller))
	h.Write([]byte{0})
	// map keys marshal sorted, so equal field sets hash equally
	if b, err := json.Marshal(fields); err == nil {
		h.Write(b)
	}
	return h.Sum64()
}
