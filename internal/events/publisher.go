// Package events publishes finished login and register flows to a Redis
// stream so observers can follow the traces as they happen.
package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/blockchat/blockchat/internal/metrics"
)

const (
	// StreamKey is the Redis stream for flow events.
	StreamKey = "blockchat:stream:flow_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// FlowEvent is the compact record written to the stream. It never carries
// email addresses or passwords.
type FlowEvent struct {
	ID          string `json:"id"`           // ULID, assigned on publish
	Flow        string `json:"f"`            // login or register
	Outcome     string `json:"o"`            // success, failure or error
	Status      int    `json:"s"`            // HTTP status returned
	FailedStep  int    `json:"fs,omitempty"` // 0 on success
	UserID      int64  `json:"uid,omitempty"`
	VisitorHash string `json:"vh"`
	RequestID   string `json:"rid,omitempty"`
	FinishedAt  int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues flow events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder

	wg sync.WaitGroup
}

// NewPublisher creates a new flow event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish adds a flow event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event FlowEvent) (string, error) {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if err := Validate(event); err != nil {
		return "", err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged and counted, never returned.
func (p *Publisher) PublishAsync(event FlowEvent) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		id, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish flow event",
				"flow", event.Flow,
				"outcome", event.Outcome,
				"error", err,
			)
			p.metrics.IncEventPublished(metrics.EventDropped)
			return
		}

		p.logger.Debug("flow event published",
			"flow", event.Flow,
			"stream_id", id,
		)
		p.metrics.IncEventPublished(metrics.EventPublished)
	}()
}

// Close waits for in-flight publishes or until ctx is done.
func (p *Publisher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain flow events: %w", ctx.Err())
	}
}

// Recent returns up to count events, newest first.
func (p *Publisher) Recent(ctx context.Context, count int64) ([]FlowEvent, error) {
	msgs, err := p.redis.XRevRangeN(ctx, StreamKey, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}

	out := make([]FlowEvent, 0, len(msgs))
	for _, msg := range msgs {
		event, err := decode(msg)
		if err != nil {
			p.logger.Warn("skipping malformed flow event", "stream_id", msg.ID, "error", err)
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func decode(msg redis.XMessage) (FlowEvent, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return FlowEvent{}, errors.New("missing payload")
	}
	var event FlowEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return FlowEvent{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return event, nil
}

// VisitorHash creates a privacy-safe client identifier.
// Uses SHA256(IP + UserAgent + daily salt) truncated to 16 hex chars.
func VisitorHash(ip, userAgent string, at time.Time) string {
	dailySalt := fmt.Sprintf("blockchat:%s", at.UTC().Format("2006-01-02"))

	hash := sha256.Sum256([]byte(ip + userAgent + dailySalt))
	return hex.EncodeToString(hash[:])[:16]
}
