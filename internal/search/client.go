// Package search is a thin Elasticsearch client for the precedent
// indices. The case index holds chunk-level sections of decided
// judgments with their embeddings; the paragraph index holds one
// summary vector per case and section for reranking.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/util"
)

// Section labels stored in the indices.
const (
	LabelFacts    = "Facts"
	LabelFullText = "FullText"
)

const scoreScript = "cosineSimilarity(params.qv,'embedding')+1.0"

// Client queries Elasticsearch over its JSON HTTP API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	log        *logger.Logger

	caseIndex      string
	paragraphIndex string
}

// NewClient creates a search client from the application config.
func NewClient(sc model.SearchConfig, hc model.HTTPConfig, log *logger.Logger) *Client {
	timeout := hc.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBytes := hc.MaxBodyBytes
	if maxBytes == 0 {
		maxBytes = 10 * 1024 * 1024
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:  strings.TrimSuffix(sc.BaseURL, "/"),
		username: sc.Username,
		password: sc.Password,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(hc.HTTPProxy, hc.HTTPSProxy, hc.NoProxy),
			},
		},
		userAgent:      hc.UserAgent,
		maxBytes:       maxBytes,
		log:            log,
		caseIndex:      sc.CaseIndex,
		paragraphIndex: sc.ParagraphIndex,
	}
}

// Hit is a single search hit.
type Hit struct {
	ID     string    `json:"_id"`
	Score  float64   `json:"_score"`
	Source HitSource `json:"_source"`
}

// HitSource carries the stored fields this pipeline reads.
type HitSource struct {
	CaseID       string    `json:"case_id"`
	CaseType     string    `json:"case_type"`
	Label        string    `json:"label"`
	OriginalText string    `json:"original_text"`
	Embedding    []float32 `json:"embedding"`
}

type searchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// VectorSearch finds the chunks most similar to the query vector,
// restricted to one section label and optionally one case type. Scores
// are cosine similarity shifted by +1.0 (the script-score convention,
// since Elasticsearch rejects negative scores).
func (c *Client) VectorSearch(ctx context.Context, vec []float32, label, caseType string, topK int) ([]Hit, error) {
	must := []map[string]any{
		{"match": map[string]any{"label": label}},
	}
	if caseType != "" {
		must = append(must, map[string]any{"term": map[string]any{"case_type.keyword": caseType}})
	}

	body := map[string]any{
		"size": topK,
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"bool": map[string]any{"must": must}},
				"script": map[string]any{
					"source": scoreScript,
					"params": map[string]any{"qv": vec},
				},
			},
		},
	}

	c.log.Debug("vector search", "index", c.caseIndex, "label", label, "case_type", caseType, "top_k", topK)
	return c.search(ctx, c.caseIndex, body)
}

// KeywordSearch finds chunks by full-text match on the stored section
// text, with the same label and case-type restrictions as VectorSearch.
// Used when no embedding backend is available.
func (c *Client) KeywordSearch(ctx context.Context, text, label, caseType string, topK int) ([]Hit, error) {
	must := []map[string]any{
		{"match": map[string]any{"original_text": text}},
		{"match": map[string]any{"label": label}},
	}
	if caseType != "" {
		must = append(must, map[string]any{"term": map[string]any{"case_type.keyword": caseType}})
	}

	body := map[string]any{
		"size":  topK,
		"query": map[string]any{"bool": map[string]any{"must": must}},
	}

	c.log.Debug("keyword search", "index", c.caseIndex, "label", label, "case_type", caseType, "top_k", topK)
	return c.search(ctx, c.caseIndex, body)
}

// maxParagraphs caps how many paragraph vectors one case contributes to
// reranking.
const maxParagraphs = 20

// ParagraphVectors fetches the stored paragraph embeddings for one case
// and section label. Returns (nil, nil) when no paragraph is indexed;
// errors are reserved for transport and decoding failures.
func (c *Client) ParagraphVectors(ctx context.Context, caseID, label string) ([][]float32, error) {
	body := map[string]any{
		"size": maxParagraphs,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"term": map[string]any{"case_id": caseID}},
					{"term": map[string]any{"label": label}},
				},
			},
		},
	}

	hits, err := c.search(ctx, c.paragraphIndex, body)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, 0, len(hits))
	for _, h := range hits {
		if len(h.Source.Embedding) > 0 {
			vecs = append(vecs, h.Source.Embedding)
		}
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs, nil
}

// Ping checks that the cluster answers on its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// search POSTs a query body to {index}/_search and decodes the hits.
func (c *Client) search(ctx context.Context, index string, body map[string]any) ([]Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search %s: unexpected status %d: %s", index, resp.StatusCode, excerpt(respBody))
	}

	var decoded searchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return decoded.Hits.Hits, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// excerpt truncates an error body for log-friendly messages.
func excerpt(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
