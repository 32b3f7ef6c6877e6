package monitor

import "time"

type Status struct {
	Backend    bool      `json:"backend"`
	Outbox     bool      `json:"outbox"`
	OutboxSize int       `json:"outbox_size"`
	LastError  string    `json:"last_error,omitempty"`
	LastCheck  time.Time `json:"last_check"`
}
