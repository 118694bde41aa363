package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/shared"
	goredis "github.com/redis/go-redis/v9"
)

// Event announces that a user's purchases changed.
type Event struct {
	UserID    int64     `json:"userId"`
	JourneyID int64     `json:"journeyId,omitempty"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}

// Bus carries purchase events between sessions.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe delivers events to onEvent until ctx is done.
	Subscribe(ctx context.Context, onEvent func(Event)) error
	Close() error
}

// LocalBus fans events out to subscribers in the same process.
type LocalBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("local bus closed")
	}
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("local bus closed")
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.subs)
	return nil
}

// RedisBus carries events over a Redis pub/sub channel so sessions in other processes see them.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	logger  *log.Logger
}

// NewRedisBus connects to addr and verifies the connection.
func NewRedisBus(ctx context.Context, addr, channel string, logger *log.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: missing redis address", shared.ErrInvalidConfig)
	}
	if channel == "" {
		channel = "journeyx:purchases"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		logger:  shared.WithLogger(logger, "component", "redis-bus"),
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.logger.Warn("bad purchase event payload", "err", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
