package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/infrastructure/buffer"
	"github.com/fastygo/companion/usecase"
)

// BufferBridge exposes the processor to use cases as an OperationBuffer.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) Defer(ctx context.Context, operation, userID string, payload json.RawMessage) error {
	if b.processor == nil || operation == "" || len(payload) == 0 {
		return domain.ErrInvalidPayload
	}
	return b.processor.Enqueue(ctx, buffer.Item{
		UserID:    userID,
		Operation: operation,
		Data:      payload,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
