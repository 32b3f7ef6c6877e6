package usecase

import (
	"context"
	"encoding/json"
)

// Outbox operations.
const (
	OperationAssessment = "assessment"
)

// OperationBuffer abstracts the outbox so use cases stay storage-agnostic.
type OperationBuffer interface {
	Defer(ctx context.Context, operation, userID string, payload json.RawMessage) error
}
