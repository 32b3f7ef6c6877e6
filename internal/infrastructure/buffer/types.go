package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is a request that could not reach the backend and waits to be replayed.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
