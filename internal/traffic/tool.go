// Package traffic drives a UDP traffic generator between two emulated hosts and
// turns its text output into per-trial samples.
package traffic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"demandexp/internal/emulator"
)

// SentinelLossPct is recorded for a trial whose metrics could not be obtained.
const SentinelLossPct = 100

// Failure reasons.
const (
	ReasonTool  = "tool"
	ReasonParse = "parse"
)

const (
	defaultSettle = 200 * time.Millisecond
	sendGrace     = 15 * time.Second
)

// Sample is the outcome of one trial.
type Sample struct {
	DemandMbps int
	LatencyMs  float64
	LossPct    float64
	Lost       int
	Sent       int
	Failed     bool
	Reason     string
	Err        error
	Output     string
}

// Tool builds receiver and sender command lines for iperf or iperf3.
type Tool struct {
	Name     string
	Port     int
	Duration time.Duration
	// Settle is how long the receiver gets to bind before the sender starts.
	Settle time.Duration
	Log    *slog.Logger
}

// NewTool returns a tool with the default receiver settle time.
func NewTool(name string, port int, d time.Duration, log *slog.Logger) *Tool {
	if log == nil {
		log = slog.Default()
	}
	return &Tool{Name: name, Port: port, Duration: d, Settle: defaultSettle, Log: log}
}

// ReceiverArgs returns the command line of the UDP receiver.
func (t *Tool) ReceiverArgs() []string {
	if t.Name == "iperf3" {
		return []string{"iperf3", "-s", "-p", strconv.Itoa(t.Port)}
	}
	return []string{"iperf", "-s", "-u", "-p", strconv.Itoa(t.Port)}
}

// SenderArgs returns the command line sending demandMbps of UDP traffic to dst.
func (t *Tool) SenderArgs(dst string, demandMbps int) []string {
	secs := strconv.Itoa(int(t.Duration.Round(time.Second) / time.Second))
	return []string{
		t.Name, "-c", dst, "-u",
		"-p", strconv.Itoa(t.Port),
		"-b", strconv.Itoa(demandMbps) + "M",
		"-t", secs,
	}
}

// Trial runs one demand-injection trial. The receiver is always torn down, and a
// failed run is recorded as the sentinel loss instead of an error.
func (t *Tool) Trial(ctx context.Context, receiver, sender emulator.Node, demandMbps int) Sample {
	s := Sample{DemandMbps: demandMbps}

	proc, err := receiver.Background(ctx, t.ReceiverArgs()...)
	if err != nil {
		return t.fail(s, ReasonTool, fmt.Errorf("start receiver: %w", err))
	}
	defer t.stop(ctx, receiver, proc)

	if t.Settle > 0 {
		select {
		case <-ctx.Done():
			return t.fail(s, ReasonTool, ctx.Err())
		case <-time.After(t.Settle):
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, t.Duration+sendGrace)
	defer cancel()
	out, err := sender.Cmd(sendCtx, t.SenderArgs(receiver.IP(), demandMbps)...)
	s.Output = out
	if err != nil {
		return t.fail(s, ReasonTool, err)
	}

	r, err := Parse(out)
	if err != nil {
		return t.fail(s, ReasonParse, err)
	}
	s.LatencyMs, s.LossPct, s.Lost, s.Sent = r.LatencyMs, r.LossPct, r.Lost, r.Sent
	return s
}

func (t *Tool) fail(s Sample, reason string, err error) Sample {
	t.Log.Warn("trial failed, recording sentinel loss", "demand_mbps", s.DemandMbps, "reason", reason, "err", err)
	s.Failed = true
	s.Reason = reason
	s.Err = err
	s.LatencyMs = 0
	s.LossPct = SentinelLossPct
	return s
}

// stop kills the receiver and any stray instance of the tool on the receiver host.
func (t *Tool) stop(ctx context.Context, receiver emulator.Node, proc emulator.Process) {
	if err := proc.Kill(); err != nil {
		t.Log.Debug("kill receiver", "err", err)
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := receiver.Cmd(ctx, "pkill", t.Name); err != nil && !noProcessMatched(err) {
		t.Log.Debug("pkill receiver", "host", receiver.Name(), "err", err)
	}
}

// pkill exits 1 when nothing matched.
func noProcessMatched(err error) bool {
	var ce *emulator.CommandError
	if !errors.As(err, &ce) {
		return false
	}
	var exit interface{ ExitCode() int }
	return errors.As(ce.Err, &exit) && exit.ExitCode() == 1
}
