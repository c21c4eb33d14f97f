package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHub fans change events out across service instances via Redis pub/sub.
// Each instance runs one receive loop per subscribed table and re-dispatches
// into a local MemoryHub, so subscriber semantics match the in-process hub.
type RedisHub struct {
	client *redis.Client
	local  *MemoryHub
	logger *slog.Logger

	mu     sync.Mutex
	loops  map[string]context.CancelFunc // table -> receive loop cancel
	closed bool
}

func NewRedisHub(client *redis.Client, logger *slog.Logger) *RedisHub {
	return &RedisHub{
		client: client,
		local:  NewMemoryHub(),
		logger: logger,
		loops:  make(map[string]context.CancelFunc),
	}
}

func channelFor(table string) string {
	return "realtime:" + table
}

func (h *RedisHub) Publish(ctx context.Context, event ChangeEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.client.Publish(ctx, channelFor(event.Table), payload).Err()
}

func (h *RedisHub) Subscribe(ctx context.Context, table string, filter Filter) (<-chan ChangeEvent, func(), error) {
	h.ensureLoop(table)
	return h.local.Subscribe(ctx, table, filter)
}

// ensureLoop starts the pub/sub receive loop for a table on first use.
func (h *RedisHub) ensureLoop(table string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, ok := h.loops[table]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.loops[table] = cancel
	pubsub := h.client.Subscribe(ctx, channelFor(table))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.Warn("dropping malformed change event",
						"table", table,
						"error", err)
					continue
				}
				_ = h.local.Publish(ctx, event)
			}
		}
	}()
}

func (h *RedisHub) Close() error {
	h.mu.Lock()
	h.closed = true
	for table, cancel := range h.loops {
		cancel()
		delete(h.loops, table)
	}
	h.mu.Unlock()
	return h.local.Close()
}
