package correlation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"purpleify/internal/kvstore"
	"purpleify/internal/logging"
)

const (
	// DefaultQueueSize bounds pending persistence writes per cache.
	DefaultQueueSize = 64

	writeTimeout = 10 * time.Second
)

// Options configures a Cache.
type Options struct {
	// Capacity is the number of ring slots. Required.
	Capacity int
	// Store enables persistence when non-nil.
	Store Store
	// Namespace prefixes every persisted key. Required with Store.
	Namespace string
	// QueueSize bounds writes waiting for the store; when full, new writes
	// are dropped with a warning. Zero selects DefaultQueueSize.
	QueueSize int
	Logger    *slog.Logger
}

type opKind uint8

const (
	opPut opKind = iota
	opDelete
)

type writeOp struct {
	kind  opKind
	key   string
	value []byte
}

// Cache is a capacity-bounded FIFO map from correlation keys to values. It is
// safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	slots      []K
	occupied   []bool
	writeIndex int
	values     map[K]V

	namespace string
	store     Store
	writes    chan writeOp
	done      chan struct{}
	closed    bool
	logger    *slog.Logger
}

// New builds a cache and, when opts.Store is set, replays the persisted
// namespace into it before returning. A store error during replay is fatal.
func New[K comparable, V any](ctx context.Context, opts Options) (*Cache[K, V], error) {
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("correlation: capacity must be positive, got %d", opts.Capacity)
	}
	if opts.Store != nil && opts.Namespace == "" {
		return nil, errors.New("correlation: namespace is required for a persisted cache")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	logger := logging.NewComponentLogger(opts.Logger, "correlation")
	if opts.Namespace != "" {
		logger = logger.With(logging.String(logging.FieldNamespace, opts.Namespace))
	}

	c := &Cache[K, V]{
		slots:     make([]K, opts.Capacity),
		occupied:  make([]bool, opts.Capacity),
		values:    make(map[K]V, opts.Capacity),
		namespace: opts.Namespace,
		store:     opts.Store,
		logger:    logger,
	}
	if c.store == nil {
		return c, nil
	}

	records, err := c.store.Load(ctx, StoragePrefix(c.namespace))
	if err != nil {
		return nil, fmt.Errorf("correlation: load namespace %q: %w", c.namespace, err)
	}
	slices.SortStableFunc(records, func(a, b kvstore.Record) int { return cmp.Compare(a.Seq, b.Seq) })

	c.writes = make(chan writeOp, opts.QueueSize)
	c.done = make(chan struct{})
	go c.runWriter()

	c.mu.Lock()
	defer c.mu.Unlock()
	skipped, foreign := 0, 0
	for _, rec := range records {
		key, value, err := DecodeEntry[K, V](rec.Value)
		if err != nil {
			skipped++
			logging.WarnWithContext(c.logger, "skipping unreadable persisted entry", "correlation_replay_skipped",
				logging.String("storage_key", rec.Key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the entry will be overwritten by the next write to its key"),
				logging.String(logging.FieldImpact, "the entry is not restored"))
			continue
		}
		if StorageKey(c.namespace, key) != rec.Key {
			// Another namespace that shares this prefix, such as "a-b" under "a".
			foreign++
			continue
		}
		c.set(key, value, false)
	}
	c.logger.Debug("correlation cache replayed",
		logging.String(logging.FieldEventType, "correlation_replayed"),
		logging.Int("records", len(records)),
		logging.Int("skipped", skipped),
		logging.Int("foreign", foreign),
		logging.Int("entries", len(c.values)))
	return c, nil
}

// Get returns the value stored for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// Set stores value under key. A new key takes the next ring slot and evicts
// its previous occupant; an existing key keeps its slot and only has its
// value replaced. Persistence is queued and never reported to the caller.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, true)
}

// SetIfAbsent stores value under key only when key is not present, and
// reports whether it did. The check and the insert are one atomic step.
func (c *Cache[K, V]) SetIfAbsent(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false
	}
	c.set(key, value, true)
	return true
}

// Len returns the number of occupied slots.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Capacity returns the number of ring slots.
func (c *Cache[K, V]) Capacity() int {
	return len(c.slots)
}

// Keys returns the present keys in eviction order, next to be evicted first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.slots)
	keys := make([]K, 0, len(c.values))
	for i := range n {
		slot := (c.writeIndex + i) % n
		if c.occupied[slot] {
			keys = append(keys, c.slots[slot])
		}
	}
	return keys
}

// Close flushes queued writes and stops the writer. Later Sets only update
// memory.
func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.writes != nil {
		close(c.writes)
	}
	c.mu.Unlock()

	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *Cache[K, V]) set(key K, value V, persist bool) {
	if _, ok := c.values[key]; !ok {
		slot := c.writeIndex % len(c.slots)
		if c.occupied[slot] {
			evicted := c.slots[slot]
			delete(c.values, evicted)
			c.enqueue(writeOp{kind: opDelete, key: StorageKey(c.namespace, evicted)})
		}
		c.slots[slot] = key
		c.occupied[slot] = true
		c.writeIndex++
	}
	c.values[key] = value

	if !persist || c.store == nil || c.closed {
		return
	}
	data, err := encodeEntry(key, value)
	if err != nil {
		logging.WarnWithContext(c.logger, "correlation entry not persisted", "correlation_encode_failed",
			logging.Any("key", key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry will not survive a restart"))
		return
	}
	c.enqueue(writeOp{kind: opPut, key: StorageKey(c.namespace, key), value: data})
}

// enqueue must be called with c.mu held.
func (c *Cache[K, V]) enqueue(op writeOp) {
	if c.store == nil || c.closed || c.writes == nil {
		return
	}
	select {
	case c.writes <- op:
	default:
		logging.WarnWithContext(c.logger, "correlation write queue full", "correlation_write_dropped",
			logging.String("storage_key", op.key),
			logging.Int("queue_size", cap(c.writes)),
			logging.String(logging.FieldErrorHint, "raise correlation.write_queue or use a faster backend"),
			logging.String(logging.FieldImpact, "entry will not survive a restart"))
	}
}

func (c *Cache[K, V]) runWriter() {
	defer close(c.done)
	for op := range c.writes {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		var err error
		switch op.kind {
		case opPut:
			err = c.store.Put(ctx, op.key, op.value)
		case opDelete:
			err = c.store.Delete(ctx, op.key)
		}
		cancel()
		if err != nil {
			logging.WarnWithContext(c.logger, "correlation persistence failed", "correlation_persist_failed",
				logging.String("storage_key", op.key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the correlation store path and permissions"),
				logging.String(logging.FieldImpact, "in-memory entry is unaffected but will not survive a restart"))
		}
	}
}
