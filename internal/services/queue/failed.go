package queue

import (
	"encoding/json"
	"time"

	"github.com/jwebster45206/inventory-engine/pkg/queue"
)

// FailedRequest is a request that was dropped, with why.
type FailedRequest struct {
	Request  queue.Request `json:"request"`
	Reason   string        `json:"reason"`
	FailedAt time.Time     `json:"failed_at"`
}

func (f *FailedRequest) toJSON() ([]byte, error) {
	return json.Marshal(f)
}

func parseFailed(data string) (FailedRequest, error) {
	var f FailedRequest
	err := json.Unmarshal([]byte(data), &f)
	return f, err
}
