package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/inventory-engine/pkg/queue"
)

const (
	requestsKey = "inventory-requests"
	failedKey   = "inventory-requests:failed"
)

// DefaultFailedLength caps the failed-request list.
const DefaultFailedLength = 500

// DeliveryQueue is the global FIFO of inventory requests. Requests that
// cannot be applied are moved to a capped failed list for inspection.
type DeliveryQueue struct {
	client    *Client
	failedLen int64
}

func NewDeliveryQueue(client *Client) *DeliveryQueue {
	return &DeliveryQueue{
		client:    client,
		failedLen: DefaultFailedLength,
	}
}

// Enqueue adds a request to the end of the queue
func (q *DeliveryQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next request.
// Returns nil if queue is empty
func (q *DeliveryQueue) Dequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for a request. It returns nil, nil
// when the wait times out.
func (q *DeliveryQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

// Depth returns the number of queued requests
func (q *DeliveryQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// Fail records a request that could not be applied, with the reason.
func (q *DeliveryQueue) Fail(ctx context.Context, req *queue.Request, reason string) error {
	data, err := (&FailedRequest{Request: *req, Reason: reason, FailedAt: time.Now().UTC()}).toJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize failed request: %w", err)
	}
	_, err = q.client.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, failedKey, data)
		pipe.LTrim(ctx, failedKey, -q.failedLen, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record failed request: %w", err)
	}
	return nil
}

// Failed returns up to limit of the most recent failed requests, oldest
// first. A limit of 0 or less returns all of them.
func (q *DeliveryQueue) Failed(ctx context.Context, limit int) ([]FailedRequest, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := q.client.rdb.LRange(ctx, failedKey, start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read failed requests: %w", err)
	}

	out := make([]FailedRequest, 0, len(raw))
	for _, entry := range raw {
		fr, err := parseFailed(entry)
		if err != nil {
			q.client.logger.Warn("Skipping malformed failed request", "error", err)
			continue
		}
		out = append(out, fr)
	}
	return out, nil
}

func parse(data string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
