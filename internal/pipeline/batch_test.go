package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
)

// stubGenerator answers by request id so results can be told apart
// regardless of completion order.
type stubGenerator struct {
	failFor map[string]bool

	mu    sync.Mutex
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, req *Request) (*model.Document, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.failFor[req.RequestID] {
		return nil, errors.New("generation failed")
	}
	id := req.RequestID
	if id == "" {
		id = "assigned"
	}
	return &model.Document{
		Text:  "起訴狀全文 " + id,
		Draft: &model.DocumentDraft{RequestID: id},
	}, nil
}

func batchRequests(ids ...string) []*Request {
	reqs := make([]*Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, &Request{RequestID: id, Input: singleInput()})
	}
	return reqs
}

func writeBatchFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessorKeepsInputOrder(t *testing.T) {
	gen := &stubGenerator{}
	proc := NewBatchProcessor(gen, 3, logger.NewNop())

	results := proc.Process(context.Background(), batchRequests("r1", "r2", "r3", "r4", "r5"))
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("result %d carries index %d", i, res.Index)
		}
		if res.Err != nil {
			t.Errorf("request %s failed: %v", res.RequestID, res.Err)
		}
		if res.Document == nil || !strings.HasSuffix(res.Document.Text, res.RequestID) {
			t.Errorf("result %d holds the wrong document", i)
		}
	}
	if gen.calls != 5 {
		t.Errorf("expected 5 generator calls, got %d", gen.calls)
	}
}

func TestBatchProcessorIsolatesFailures(t *testing.T) {
	gen := &stubGenerator{failFor: map[string]bool{"bad": true}}
	proc := NewBatchProcessor(gen, 2, logger.NewNop())

	results := proc.Process(context.Background(), batchRequests("ok1", "bad", "ok2"))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Err == nil {
		t.Error("failing request should carry its error")
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("one failure must not affect the other requests")
	}
	if results[1].GetError() == nil {
		t.Error("GetError should surface the failure")
	}
}

func TestBatchProcessorAssignedIDs(t *testing.T) {
	gen := &stubGenerator{}
	proc := NewBatchProcessor(gen, 1, logger.NewNop())

	results := proc.Process(context.Background(), []*Request{{Input: singleInput()}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].RequestID != "assigned" {
		t.Errorf("result should carry the pipeline-assigned id, got %q", results[0].RequestID)
	}
}

func TestBatchProcessorEmpty(t *testing.T) {
	proc := NewBatchProcessor(&stubGenerator{}, 2, logger.NewNop())
	if results := proc.Process(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadRequestsFromFile(t *testing.T) {
	path := writeBatchFile(t, `# 測試批次
{"request_id":"r1","input":{"accident_facts":"被告撞擊原告","injury_description":"骨折","damage_claims":[{"label":"醫療費用","amount":50000}]}}

{"request_id":"r2","input":{"raw_text":"一、事故發生緣由：被告撞擊原告"}}
{"request_id":"r1","input":{"accident_facts":"重複的請求"}}
{"input":{"accident_facts":"匿名一"}}
{"input":{"accident_facts":"匿名二"}}
`)

	reqs, err := ReadRequestsFromFile(path)
	if err != nil {
		t.Fatalf("ReadRequestsFromFile failed: %v", err)
	}
	// r1, r2, and both anonymous requests; the duplicate r1 is dropped.
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	if reqs[0].RequestID != "r1" || reqs[0].Input.AccidentFacts != "被告撞擊原告" {
		t.Errorf("first request decoded wrong: %+v", reqs[0])
	}
	if reqs[1].Input.RawText == "" {
		t.Error("raw-text request should decode")
	}
	if reqs[2].RequestID != "" || reqs[3].RequestID != "" {
		t.Error("anonymous requests must both survive")
	}
}

func TestReadRequestsFromFileMalformed(t *testing.T) {
	path := writeBatchFile(t, `{"request_id":"r1","input":{"accident_facts":"ok"}}
{"request_id":"r2", broken
`)

	_, err := ReadRequestsFromFile(path)
	if err == nil {
		t.Fatal("malformed line should fail the read")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestReadRequestsFromFileMissing(t *testing.T) {
	if _, err := ReadRequestsFromFile(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Error("missing file should error")
	}
}

func TestBatchProcessorProcessFile(t *testing.T) {
	path := writeBatchFile(t, `{"request_id":"r1","input":{"accident_facts":"被告撞擊原告","injury_description":"骨折","damage_claims":[{"label":"醫療費用","amount":50000}]}}
{"request_id":"r2","input":{"accident_facts":"被告撞擊原告","injury_description":"挫傷","damage_claims":[{"label":"醫療費用","amount":20000}]}}
`)

	proc := NewBatchProcessor(&stubGenerator{}, 2, logger.NewNop())
	results, err := proc.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}
