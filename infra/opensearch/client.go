package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// LogIndexName is the index all service logs are written to.
const LogIndexName = "payu-gateway-logs"

// Config holds the OpenSearch connection settings.
type Config struct {
	URL      string
	Username string
	Password string
}

// Client wraps the OpenSearch client.
type Client struct {
	client *opensearch.Client
}

// NewClient creates a new OpenSearch client and ensures the log index
// exists.
func NewClient(cfg Config) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.URL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}
	if cfg.Username != "" && cfg.Password != "" {
		opensearchConfig.Username = cfg.Username
		opensearchConfig.Password = cfg.Password
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{client: client}
	if err := osClient.setupIndex(); err != nil {
		log.Printf("Warning: Failed to setup OpenSearch index: %v", err)
	}
	return osClient, nil
}

// GetClient returns the underlying OpenSearch client.
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

func (c *Client) setupIndex() error {
	exists, err := c.indexExists(LogIndexName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := c.createLogIndex(LogIndexName); err != nil {
		return err
	}
	log.Printf("Created OpenSearch index: %s", LogIndexName)
	return nil
}

func (c *Client) indexExists(indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

func (c *Client) createLogIndex(indexName string) error {
	mapping := `{
		"mappings": {
			"properties": {
				"timestamp": {
					"type": "date",
					"format": "strict_date_optional_time||epoch_millis"
				},
				"level": {
					"type": "keyword"
				},
				"message": {
					"type": "text"
				},
				"component": {
					"type": "keyword"
				},
				"provider": {
					"type": "keyword"
				},
				"request_id": {
					"type": "keyword"
				},
				"error": {
					"type": "text"
				},
				"fields": {
					"type": "object"
				},
				"environment": {
					"type": "keyword"
				},
				"service": {
					"type": "keyword"
				}
			}
		},
		"settings": {
			"number_of_shards": 1,
			"number_of_replicas": 0
		}
	}`

	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}
	return nil
}
