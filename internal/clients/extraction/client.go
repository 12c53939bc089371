package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Client for the document extraction service. The service owns text
// extraction (PDF parsing, OCR, provider APIs); this side only consumes
// the typed records it returns.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new extraction service client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "extraction").Logger(),
	}
}

// Extract fetches the transactions and statement metadata extracted from
// a document reference.
func (c *Client) Extract(ctx context.Context, documentRef string) (*ExtractionResult, error) {
	endpoint := fmt.Sprintf("%s/extract?document=%s", c.baseURL, url.QueryEscape(documentRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, string(body))
	}

	var result ExtractionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	c.log.Debug().
		Str("document", documentRef).
		Int("transactions", len(result.Transactions)).
		Msg("Document extracted")

	return &result, nil
}
