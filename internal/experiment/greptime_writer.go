package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// DefaultTrialTable is used when no table name is configured.
const DefaultTrialTable = "demand_trials"

// greptimeClient is the subset of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter exports trial samples to GreptimeDB.
type GreptimeDBWriter struct {
	client     greptimeClient
	trialTable string
	log        *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(endpoint, database, trialTable string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port := endpoint, 0
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptime endpoint %q: %w", endpoint, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithDatabase(database)
	if port > 0 {
		cfg = cfg.WithPort(port)
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if trialTable == "" {
		trialTable = DefaultTrialTable
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{client: client, trialTable: trialTable, log: log}, nil
}

// WriteTrial implements TrialWriter.
func (w *GreptimeDBWriter) WriteTrial(row TrialRow) error {
	return w.WriteTrials([]TrialRow{row})
}

// WriteTrials inserts several trials in one request.
func (w *GreptimeDBWriter) WriteTrials(rows []TrialRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.trialSchema()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(
			r.RunID,
			r.Scenario,
			int64(r.Trial),
			int64(r.DemandMbps),
			r.LatencyMs,
			r.LossPct,
			int64(r.Lost),
			int64(r.Sent),
			r.Failed,
			r.Reason,
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Warn("greptime write failed", "table", w.trialTable, "err", err)
		return err
	}
	w.log.Debug("greptime wrote trials", "table", w.trialTable, "rows", len(rows))
	return nil
}

func (w *GreptimeDBWriter) trialSchema() (*table.Table, error) {
	tbl, err := table.New(w.trialTable)
	if err != nil {
		return nil, err
	}
	cols := []struct {
		name string
		typ  types.ColumnType
		tag  bool
	}{
		{"run_id", types.STRING, true},
		{"scenario", types.STRING, true},
		{"trial", types.INT64, false},
		{"demand_mbps", types.INT64, false},
		{"latency_ms", types.FLOAT64, false},
		{"loss_pct", types.FLOAT64, false},
		{"lost", types.INT64, false},
		{"sent", types.INT64, false},
		{"failed", types.BOOLEAN, false},
		{"reason", types.STRING, false},
	}
	for _, c := range cols {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}
