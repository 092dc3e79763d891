package worker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DocumentReady is the message both queues carry: a document finished
// uploading and is ready for annotation.
type DocumentReady struct {
	DocumentID  uuid.UUID `json:"document_id"`
	S3URL       string    `json:"s3_url"`
	ContentType string    `json:"content_type"`
}

// ParseDocumentReady decodes and validates a queue payload. A payload
// missing any required field is malformed; the consumer logs and acks it
// rather than letting it poison the queue.
func ParseDocumentReady(data []byte) (DocumentReady, error) {
	var msg DocumentReady
	if err := json.Unmarshal(data, &msg); err != nil {
		return DocumentReady{}, fmt.Errorf("invalid message body: %v", err)
	}

	if msg.DocumentID == uuid.Nil {
		return DocumentReady{}, fmt.Errorf("missing document_id")
	}
	if msg.S3URL == "" {
		return DocumentReady{}, fmt.Errorf("missing s3_url")
	}
	if msg.ContentType == "" {
		return DocumentReady{}, fmt.Errorf("missing content_type")
	}

	return msg, nil
}
