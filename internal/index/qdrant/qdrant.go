// Package qdrant is a minimal REST client for similarity search against a
// Qdrant collection. The access predicate becomes a payload filter on the
// fragment's sensitivity class, so restricted content never leaves the
// index.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"ragchat/internal/domain"
)

// Index queries a Qdrant collection over its REST API.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Config contains connection details for a Qdrant collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewIndex creates a Qdrant search client.
func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Search returns up to topK nearest neighbors that pass the visibility
// predicate, scores clamped to [0,1], best first.
func (x *Index) Search(ctx context.Context, vector []float64, pred domain.Predicate, topK int) ([]domain.Match, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if !pred.Unrestricted() {
		classes := pred.Classes()
		allowed := make([]string, len(classes))
		for i, c := range classes {
			allowed[i] = string(c)
		}
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "sensitivity", "match": map[string]any{"any": allowed}},
			},
		}
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", x.url, x.collection)
	if err := x.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload["fragment_id"].(string)
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		matches = append(matches, domain.Match{FragmentID: id, Score: clamp01(r.Score)})
	}
	return matches, nil
}

func clamp01(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func (x *Index) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
