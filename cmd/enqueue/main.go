package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/internal/config"
	"github.com/jwebster45206/inventory-engine/internal/logger"
	"github.com/jwebster45206/inventory-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/inventory-engine/pkg/queue"
)

const usage = `Usage:
  %[1]s deliver <inventory-id> <shape-id> [payload-json]
  %[1]s release <inventory-id> <item-id>
  %[1]s failed [limit]

REDIS_URL selects the Redis instance (default localhost:6379).
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.SetupWriter(cfg, os.Stderr)

	redisURL := cfg.RedisURL
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}

	client, err := queue.NewClient(redisURL, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()
	q := queue.NewDeliveryQueue(client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, q, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}
}

func run(ctx context.Context, q *queue.DeliveryQueue, args []string) error {
	req, err := buildRequest(args)
	if err != nil {
		return err
	}

	if req == nil {
		limit := 20
		if len(args) > 1 {
			if _, err := fmt.Sscanf(args[1], "%d", &limit); err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
		}
		failed, err := q.Failed(ctx, limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(failed)
	}

	if err := q.Enqueue(ctx, req); err != nil {
		return err
	}
	depth, err := q.Depth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Enqueued %s request %s (queue depth %d)\n", req.Type, req.RequestID, depth)
	return nil
}

// buildRequest parses a command line into a request. It returns nil, nil for
// the failed command.
func buildRequest(args []string) (*queuePkg.Request, error) {
	switch args[0] {
	case "deliver":
		if len(args) < 3 {
			return nil, fmt.Errorf("deliver needs an inventory ID and a shape ID")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid inventory ID: %w", err)
		}
		var payload json.RawMessage
		if len(args) > 3 {
			if !json.Valid([]byte(args[3])) {
				return nil, fmt.Errorf("payload is not valid JSON")
			}
			payload = json.RawMessage(args[3])
		}
		return queuePkg.NewDelivery(id, args[2], payload), nil

	case "release":
		if len(args) < 3 {
			return nil, fmt.Errorf("release needs an inventory ID and an item ID")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid inventory ID: %w", err)
		}
		itemID, err := uuid.Parse(args[2])
		if err != nil {
			return nil, fmt.Errorf("invalid item ID: %w", err)
		}
		return &queuePkg.Request{
			RequestID:   uuid.New().String(),
			Type:        queuePkg.RequestTypeRelease,
			InventoryID: id,
			ItemID:      itemID,
			EnqueuedAt:  time.Now().UTC(),
		}, nil

	case "failed":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}
