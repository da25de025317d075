package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/relivre/popcorn/plugin/ai/retry"
	"github.com/relivre/popcorn/store"
)

// VectorSearcher is anything that can answer a nearest-neighbor query
// with scored movie IDs. The store's pgvector driver satisfies it
// directly; VectorServiceClient covers the external sidecar deployment.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, vector []float32, topK int) ([]*store.MovieHit, error)
}

// VectorServiceClient talks to an external vector-search sidecar over
// HTTP. The sidecar owns the index; this client only ships the query
// vector and reads back (id, score) pairs.
type VectorServiceClient struct {
	baseURL string
	client  *http.Client
	policy  retry.Policy
}

// NewVectorServiceClient builds a client for the sidecar at baseURL.
// A zero timeout defaults to ten seconds.
func NewVectorServiceClient(baseURL string, timeout time.Duration) *VectorServiceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VectorServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		policy:  retry.DefaultPolicy(),
	}
}

type vectorSearchRequest struct {
	Vector []float32 `json:"vector"`
	TopK   int       `json:"topK"`
}

type vectorSearchResponse struct {
	Results []struct {
		ImdbID string  `json:"imdbId"`
		Score  float32 `json:"score"`
	} `json:"results"`
}

// VectorSearch posts the query vector to the sidecar and returns hits in
// the sidecar's score order. Transient HTTP failures are retried under
// the same backoff policy as model calls.
func (c *VectorServiceClient) VectorSearch(ctx context.Context, vector []float32, topK int) ([]*store.MovieHit, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}

	payload, err := json.Marshal(vectorSearchRequest{Vector: vector, TopK: topK})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode vector search request")
	}

	var hits []*store.MovieHit
	err = c.policy.Do(ctx, func() error {
		hits, err = c.searchOnce(ctx, payload)
		return err
	}, retry.Transient)
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (c *VectorServiceClient) searchOnce(ctx context.Context, payload []byte) ([]*store.MovieHit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build vector search request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "vector service unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read vector service response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("vector service returned %d", resp.StatusCode),
		}
	}

	var parsed vectorSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "malformed vector service response")
	}

	hits := make([]*store.MovieHit, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.ImdbID == "" {
			continue
		}
		hits = append(hits, &store.MovieHit{ImdbID: r.ImdbID, Score: r.Score})
	}
	return hits, nil
}
