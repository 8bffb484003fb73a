package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"demandexp/internal/config"
	"demandexp/internal/experiment"
)

type staticSource struct{ p experiment.Progress }

func (s staticSource) Progress() experiment.Progress { return s.p }

func testServer(p experiment.Progress) *Server {
	return NewServer(staticSource{p}, config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completedProgress() experiment.Progress {
	return experiment.Progress{
		RunID: "run-1", Scenario: "unknown", Index: 2, Scenarios: 2, Trial: 1, Trials: 2,
		Completed: []experiment.ScenarioResult{{
			Name: "known", Demands: []int{50, 50}, Latencies: []float64{0.1, 0.3}, Losses: []float64{0, 4},
			AvgLatency: 0.2, AvgLoss: 2,
		}},
	}
}

func TestHandleProgress(t *testing.T) {
	server := testServer(completedProgress())

	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	w := httptest.NewRecorder()
	server.handleProgress(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var p experiment.Progress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if p.RunID != "run-1" || p.Scenario != "unknown" || len(p.Completed) != 1 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if p.Completed[0].AvgLoss != 2 {
		t.Errorf("unexpected completed scenario: %+v", p.Completed[0])
	}
}

func TestHandleIndex(t *testing.T) {
	server := testServer(completedProgress())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	server.handleIndex(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"run-1", "Known Demands", "<td>0.300</td>", "<td>4.00</td>", "trial 1/2"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestHandleIndexFinished(t *testing.T) {
	server := testServer(experiment.Progress{Done: true, Err: "scenario known: boom"})
	w := httptest.NewRecorder()
	server.handleIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if body := w.Body.String(); !strings.Contains(body, "Failed: scenario known: boom") {
		t.Errorf("error not rendered:\n%s", body)
	}
}

func TestHandleIndexNotFound(t *testing.T) {
	server := testServer(experiment.Progress{})
	w := httptest.NewRecorder()
	server.handleIndex(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStartServesAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := testServer(completedProgress())
	addr, err := server.Start(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get(fmt.Sprintf("http://%s/progress", addr))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	cancel()
}

type brokenResponse struct{ header http.Header }

func (b *brokenResponse) Header() http.Header       { return b.header }
func (b *brokenResponse) Write([]byte) (int, error) { return 0, errors.New("connection reset") }
func (b *brokenResponse) WriteHeader(int)           {}

func TestHandleProgressLogsEncodeError(t *testing.T) {
	var buf bytes.Buffer
	server := NewServer(staticSource{completedProgress()}, config.Default(), slog.New(slog.NewTextHandler(&buf, nil)))
	server.handleProgress(&brokenResponse{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/progress", nil))
	if !strings.Contains(buf.String(), "encode progress") || !strings.Contains(buf.String(), "connection reset") {
		t.Fatalf("encode error not logged: %s", buf.String())
	}
}
