package experiment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"demandexp/internal/traffic"
)

type mockGreptimeClient struct {
	table *table.Table
	err   error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterTrials(t *testing.T) {
	ts := time.Unix(0, 0).UTC()
	row := TrialRow{
		RunID:     "run-1",
		Scenario:  "unknown",
		Trial:     3,
		Trials:    10,
		Timestamp: ts,
		Sample: traffic.Sample{
			DemandMbps: 70,
			LatencyMs:  0.25,
			LossPct:    2.5,
			Lost:       25,
			Sent:       1000,
		},
	}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, trialTable: "trials", log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if err := w.WriteTrial(row); err != nil {
		t.Fatalf("WriteTrial: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	rows := m.table.GetRows()
	if len(rows.Schema) != 11 {
		t.Fatalf("unexpected schema length: %d", len(rows.Schema))
	}
	if rows.Schema[0].SemanticType != gpb.SemanticType_TAG || rows.Schema[1].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("run_id and scenario must be tags")
	}
	if rows.Schema[10].SemanticType != gpb.SemanticType_TIMESTAMP {
		t.Fatalf("ts must be the time index")
	}
	vals := rows.Rows[0].Values
	if got := vals[0].GetStringValue(); got != "run-1" {
		t.Fatalf("run_id = %s", got)
	}
	if got := vals[1].GetStringValue(); got != "unknown" {
		t.Fatalf("scenario = %s", got)
	}
	if got := vals[3].GetI64Value(); got != 70 {
		t.Fatalf("demand_mbps = %d", got)
	}
	if got := vals[5].GetF64Value(); got != 2.5 {
		t.Fatalf("loss_pct = %v", got)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, trialTable: "trials", log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if err := w.WriteTrial(TrialRow{RunID: "r", Scenario: "known", Timestamp: time.Now()}); err == nil {
		t.Fatalf("expected error")
	}
	if err := w.WriteTrials(nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}
