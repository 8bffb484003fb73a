// Package experiment runs the demand scenarios trial by trial and aggregates their samples.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"demandexp/internal/config"
	"demandexp/internal/emulator"
	"demandexp/internal/scenario"
	"demandexp/internal/traffic"
)

// Topology is the emulated network a scenario runs on.
type Topology interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Node(name string) (emulator.Node, bool)
}

// Trialer runs a single trial between two nodes.
type Trialer interface {
	Trial(ctx context.Context, receiver, sender emulator.Node, demandMbps int) traffic.Sample
}

// Runner executes every configured scenario on a fresh topology.
type Runner struct {
	cfg         *config.ExperimentConfig
	newTopology func() Topology
	tool        Trialer
	writer      TrialWriter
	rng         *rand.Rand
	log         *slog.Logger
	runID       string
	now         func() time.Time

	mu       sync.Mutex
	progress Progress
}

// NewRunner wires a runner. A zero seed in cfg selects a time-based seed.
func NewRunner(cfg *config.ExperimentConfig, newTopology func() Topology, tool Trialer, writer TrialWriter, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if writer == nil {
		writer = NewMultiWriter()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	id := uuid.NewString()
	return &Runner{
		cfg:         cfg,
		newTopology: newTopology,
		tool:        tool,
		writer:      writer,
		rng:         rand.New(rand.NewSource(seed)),
		log:         log.With("run_id", id),
		runID:       id,
		now:         time.Now,
		progress:    Progress{RunID: id, Scenarios: len(cfg.Scenarios), Trials: cfg.Traffic.Trials},
	}
}

// RunID identifies this run in logs and exported telemetry.
func (r *Runner) RunID() string { return r.runID }

// Progress returns a snapshot safe to read from other goroutines.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.progress
	p.Completed = append([]ScenarioResult(nil), r.progress.Completed...)
	return p
}

// Run executes the scenarios sequentially. Cancellation is honoured between trials;
// the topology is torn down in every case.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: r.runID, Started: r.now()}
	for i, sc := range r.cfg.Scenarios {
		r.update(func(p *Progress) {
			p.Scenario, p.Index, p.Trial = sc.Name, i+1, 0
		})
		r.log.Info("running scenario", "scenario", sc.Name, "known_demand", sc.Known())
		res, err := r.runScenario(ctx, sc)
		if err != nil {
			r.finish(err)
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		sum.Scenarios = append(sum.Scenarios, res)
		r.update(func(p *Progress) { p.Completed = append(p.Completed, res) })
		if sw, ok := r.writer.(scenarioWriter); ok {
			if err := sw.WriteScenario(res); err != nil {
				r.log.Warn("scenario writer failed", "err", err)
			}
		}
	}
	sum.Finished = r.now()
	r.finish(nil)
	return sum, nil
}

func (r *Runner) runScenario(ctx context.Context, sc scenario.Scenario) (res ScenarioResult, err error) {
	trials := r.cfg.Traffic.Trials
	demands := sc.Demands(trials, r.rng)

	topo := r.newTopology()
	if err := topo.Start(ctx); err != nil {
		return ScenarioResult{}, err
	}
	defer func() {
		if stopErr := topo.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stop network: %w", stopErr))
		}
	}()

	rx, ok := topo.Node(r.cfg.Traffic.Receiver)
	if !ok {
		return ScenarioResult{}, fmt.Errorf("receiver host %s not in topology", r.cfg.Traffic.Receiver)
	}
	tx, ok := topo.Node(r.cfg.Traffic.Sender)
	if !ok {
		return ScenarioResult{}, fmt.Errorf("sender host %s not in topology", r.cfg.Traffic.Sender)
	}

	res = ScenarioResult{
		Name:      sc.Name,
		Demands:   demands,
		Latencies: make([]float64, 0, trials),
		Losses:    make([]float64, 0, trials),
	}
	for i, d := range demands {
		if err := ctx.Err(); err != nil {
			return ScenarioResult{}, err
		}
		r.update(func(p *Progress) { p.Trial = i + 1 })
		r.log.Info("simulating traffic", "scenario", sc.Name, "trial", i+1, "demand_mbps", d)

		s := r.tool.Trial(ctx, rx, tx, d)
		res.Latencies = append(res.Latencies, s.LatencyMs)
		res.Losses = append(res.Losses, s.LossPct)
		if s.Failed {
			res.Failed++
		}

		row := TrialRow{
			RunID:     r.runID,
			Scenario:  sc.Name,
			Trial:     i + 1,
			Trials:    trials,
			Timestamp: r.now(),
			Sample:    s,
		}
		if err := r.writer.WriteTrial(row); err != nil {
			r.log.Warn("trial writer failed", "err", err)
		}
	}

	res.AvgLatency = Mean(res.Latencies)
	res.AvgLoss = Mean(res.Losses)
	r.log.Info("scenario finished", "scenario", sc.Name, "avg_latency_ms", res.AvgLatency, "avg_loss_pct", res.AvgLoss, "failed_trials", res.Failed)
	return res, nil
}

func (r *Runner) update(fn func(*Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
}

func (r *Runner) finish(err error) {
	r.update(func(p *Progress) {
		p.Done = true
		if err != nil {
			p.Err = err.Error()
		}
	})
}
