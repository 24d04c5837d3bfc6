package resize

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Freeman-md/funcify/internal/domain/imagetask"
)

// Handler consumes image-processing messages from the queue and runs the
// resize workflow for each.
type Handler struct {
	service         *Service
	processedBucket string
	partitionKey    string
}

// NewHandler constructs a queue message handler.
func NewHandler(service *Service, processedBucket, partitionKey string) *Handler {
	return &Handler{
		service:         service,
		processedBucket: processedBucket,
		partitionKey:    partitionKey,
	}
}

// Handle processes one queue delivery. Malformed payloads are logged and
// dropped: redelivering a payload that cannot be parsed would loop forever.
// Resize failures propagate so the consumer can reject the delivery.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	lg := zctx.From(ctx)

	msg, err := imagetask.Decode(payload)
	if err != nil {
		if errors.Is(err, imagetask.ErrMalformed) {
			lg.Warn("Dropping malformed task message",
				zap.Error(err),
				zap.Int("payload_bytes", len(payload)),
			)
			return nil
		}
		return err
	}

	lg.Info("Processing image task",
		zap.String("product_id", msg.ProductID),
		zap.String("file_name", msg.FileName),
	)

	address, err := h.service.Resize(ctx, h.processedBucket, msg.ProductID, h.partitionKey, msg.FileName)
	if err != nil {
		return errors.Wrapf(err, "resize %q", msg.FileName)
	}

	lg.Info("Image processed",
		zap.String("product_id", msg.ProductID),
		zap.String("address", address),
	)
	return nil
}
