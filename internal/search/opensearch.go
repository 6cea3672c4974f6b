// Package search indexes processed events into OpenSearch, the
// collector's persistence handoff target.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// Config holds OpenSearch connection configuration.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
}

// Client writes events to per-day indices.
type Client struct {
	osClient *opensearch.Client
	config   Config
}

// NewClient creates an OpenSearch event sink.
func NewClient(cfg Config) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Client{osClient: client, config: cfg}, nil
}

// Ping verifies the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	info, err := c.osClient.Info(c.osClient.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}
	return nil
}

func (c *Client) indexName(event *models.Event) string {
	return fmt.Sprintf("%s-%s", c.config.IndexPrefix, event.Date.UTC().Format("2006.01.02"))
}

// SaveEvent indexes a single processed event.
func (c *Client) SaveEvent(ctx context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      c.indexName(event),
		DocumentID: event.ID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, c.osClient)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch rejected event: %s", res.Status())
	}
	return nil
}
