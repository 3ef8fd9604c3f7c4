package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Logger indexes structured log entries into OpenSearch.
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger.
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogSystemEvent indexes a log entry document. The entry can be any
// JSON-marshalable value.
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      LogIndexName,
		DocumentID: uuid.New().String(),
		Body:       bytes.NewReader(doc),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log entry: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("log indexing error: %s", res.String())
	}
	return nil
}
