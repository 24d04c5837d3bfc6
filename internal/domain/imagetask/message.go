// Package imagetask defines the deferred image-processing unit of work that
// travels over the queue between the intake server and the resize worker.
package imagetask

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

// Message describes one pending resize. FileName is the blob name to reuse
// for the processed output; the processed container holds it under the same
// name as the unprocessed one.
type Message struct {
	ProductID           string `json:"ProductId"`
	UnprocessedImageURL string `json:"UnprocessedImageUrl"`
	FileName            string `json:"FileName"`
}

// ErrMalformed is returned by Decode when the payload is not a valid message.
var ErrMalformed = errors.New("malformed image task message")

// Encode serializes the message for queue transport.
func (m Message) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "marshal image task")
	}
	return string(b), nil
}

// Decode parses a queue payload. Payloads that are not JSON objects or that
// lack a product ID and file name are reported as ErrMalformed so consumers
// can drop them without retry.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, errors.Wrapf(ErrMalformed, "decode: %v", err)
	}
	if m.ProductID == "" && m.FileName == "" {
		return Message{}, errors.Wrap(ErrMalformed, "empty product ID and file name")
	}
	return m, nil
}

// Queue submits opaque task messages for asynchronous consumption.
// Delivery is at-least-once; redelivery policy belongs to the backend.
type Queue interface {
	Send(ctx context.Context, message string) error
}
