package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/worker"
)

// Generator produces one complaint per request. *Pipeline satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*model.Document, error)
}

// BatchResult is the outcome of one batch entry, tagged with its input
// position.
type BatchResult struct {
	Index     int
	RequestID string
	Document  *model.Document
	Err       error
}

// GetError implements worker.Result.
func (r *BatchResult) GetError() error { return r.Err }

// generateJob runs one request through the generator.
type generateJob struct {
	index int
	req   *Request
	gen   Generator
	log   *logger.Logger
}

func (j *generateJob) Execute(ctx context.Context) worker.Result {
	doc, err := j.gen.Generate(ctx, j.req)
	res := &BatchResult{Index: j.index, RequestID: j.req.RequestID, Document: doc, Err: err}
	if err != nil {
		j.log.Warn("batch request failed",
			"index", j.index, "request_id", j.req.RequestID, "error", err)
		return res
	}
	if doc.Draft != nil {
		// Pick up the id the pipeline assigned to anonymous requests.
		res.RequestID = doc.Draft.RequestID
	}
	j.log.Info("batch request done", "index", j.index, "request_id", res.RequestID)
	return res
}

// BatchProcessor fans complaint requests out over a worker pool.
type BatchProcessor struct {
	gen     Generator
	workers int
	log     *logger.Logger
}

// NewBatchProcessor creates a processor running at most workers requests
// concurrently.
func NewBatchProcessor(gen Generator, workers int, log *logger.Logger) *BatchProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchProcessor{gen: gen, workers: workers, log: log}
}

// Process runs the requests concurrently and returns one result per
// request, in input order. Per-request failures land in the result, not
// in an error: one bad narrative must not sink the rest of the batch.
func (b *BatchProcessor) Process(ctx context.Context, reqs []*Request) []*BatchResult {
	if len(reqs) == 0 {
		return nil
	}

	pool := worker.NewPool(ctx, b.workers)
	pool.Start()
	for i, req := range reqs {
		pool.Submit(&generateJob{index: i, req: req, gen: b.gen, log: b.log})
	}

	results := make([]*BatchResult, 0, len(reqs))
	for _, res := range pool.Wait() {
		results = append(results, res.(*BatchResult))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// ProcessFile reads a request file and processes its entries.
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*BatchResult, error) {
	reqs, err := ReadRequestsFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	return b.Process(ctx, reqs), nil
}

// ReadRequestsFromFile reads one JSON request per line. Blank lines and
// # comments are skipped; lines repeating an explicit request id are
// dropped as duplicates. A line that is not valid JSON fails the whole
// read, with its line number.
func ReadRequestsFromFile(path string) ([]*Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var reqs []*Request
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	// Narrative lines run long; the default token limit is too small.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if req.RequestID != "" {
			if seen[req.RequestID] {
				continue
			}
			seen[req.RequestID] = true
		}
		reqs = append(reqs, &req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return reqs, nil
}
