package traffic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"demandexp/internal/emulator"
)

type fakeProc struct{ killed int }

func (p *fakeProc) Kill() error { p.killed++; return nil }

type fakeNode struct {
	name     string
	ip       string
	out      string
	err      error
	startErr error
	cmds     []string
	procs    []*fakeProc
}

func (n *fakeNode) Name() string { return n.name }
func (n *fakeNode) IP() string   { return n.ip }

func (n *fakeNode) Cmd(ctx context.Context, args ...string) (string, error) {
	n.cmds = append(n.cmds, strings.Join(args, " "))
	if args[0] == "pkill" {
		return "", nil
	}
	return n.out, n.err
}

func (n *fakeNode) Background(ctx context.Context, args ...string) (emulator.Process, error) {
	n.cmds = append(n.cmds, strings.Join(args, " ")+" &")
	if n.startErr != nil {
		return nil, n.startErr
	}
	p := &fakeProc{}
	n.procs = append(n.procs, p)
	return p, nil
}

func newTestTool(name string) *Tool {
	tool := NewTool(name, 5001, 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tool.Settle = 0
	return tool
}

const report = "[  3]  0.0- 2.0 sec  11.9 MBytes  50.0 Mbits/sec   0.020 ms   10/ 1000 (1%)\n"

func TestCommandLines(t *testing.T) {
	tool := newTestTool("iperf")
	if got := strings.Join(tool.ReceiverArgs(), " "); got != "iperf -s -u -p 5001" {
		t.Errorf("receiver = %q", got)
	}
	if got := strings.Join(tool.SenderArgs("10.0.0.1", 50), " "); got != "iperf -c 10.0.0.1 -u -p 5001 -b 50M -t 2" {
		t.Errorf("sender = %q", got)
	}
	tool3 := newTestTool("iperf3")
	if got := strings.Join(tool3.ReceiverArgs(), " "); got != "iperf3 -s -p 5001" {
		t.Errorf("iperf3 receiver = %q", got)
	}
}

func TestTrialSuccess(t *testing.T) {
	tool := newTestTool("iperf")
	rx := &fakeNode{name: "h1", ip: "10.0.0.1"}
	tx := &fakeNode{name: "h2", ip: "10.0.0.2", out: report}

	s := tool.Trial(context.Background(), rx, tx, 50)
	if s.Failed {
		t.Fatalf("unexpected failure: %v", s.Err)
	}
	if s.DemandMbps != 50 || s.LatencyMs != 0.02 || s.LossPct != 1 || s.Lost != 10 || s.Sent != 1000 {
		t.Fatalf("unexpected sample %+v", s)
	}
	if s.Output != report {
		t.Fatalf("raw output not kept")
	}
	if rx.cmds[0] != "iperf -s -u -p 5001 &" || rx.cmds[len(rx.cmds)-1] != "pkill iperf" {
		t.Fatalf("unexpected receiver commands %v", rx.cmds)
	}
	if rx.procs[0].killed != 1 {
		t.Fatalf("receiver not killed")
	}
	if tx.cmds[0] != "iperf -c 10.0.0.1 -u -p 5001 -b 50M -t 2" {
		t.Fatalf("unexpected sender command %v", tx.cmds)
	}
}

func TestTrialFailures(t *testing.T) {
	cases := []struct {
		name     string
		rx       *fakeNode
		tx       *fakeNode
		reason   string
		wantKill bool
	}{
		{
			name:     "sender error",
			rx:       &fakeNode{name: "h1", ip: "10.0.0.1"},
			tx:       &fakeNode{name: "h2", out: "connect failed", err: errors.New("exit status 1")},
			reason:   ReasonTool,
			wantKill: true,
		},
		{
			name:     "unparseable output",
			rx:       &fakeNode{name: "h1", ip: "10.0.0.1"},
			tx:       &fakeNode{name: "h2", out: "WARNING: did not receive ack of last datagram after 10 tries."},
			reason:   ReasonParse,
			wantKill: true,
		},
		{
			name:   "receiver start error",
			rx:     &fakeNode{name: "h1", ip: "10.0.0.1", startErr: errors.New("no such binary")},
			tx:     &fakeNode{name: "h2", out: report},
			reason: ReasonTool,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestTool("iperf").Trial(context.Background(), tc.rx, tc.tx, 30)
			if !s.Failed || s.Reason != tc.reason || s.Err == nil {
				t.Fatalf("expected %s failure, got %+v", tc.reason, s)
			}
			if s.LossPct != SentinelLossPct || s.LatencyMs != 0 {
				t.Fatalf("expected sentinel values, got %+v", s)
			}
			if tc.wantKill && tc.rx.procs[0].killed != 1 {
				t.Fatalf("receiver must be killed after a failed trial")
			}
		})
	}
}

func TestTrialCanceledDuringSettle(t *testing.T) {
	tool := newTestTool("iperf")
	tool.Settle = time.Hour
	rx := &fakeNode{name: "h1", ip: "10.0.0.1"}
	tx := &fakeNode{name: "h2", out: report}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := tool.Trial(ctx, rx, tx, 10)
	if !s.Failed || !errors.Is(s.Err, context.Canceled) {
		t.Fatalf("expected canceled trial, got %+v", s)
	}
	if len(tx.cmds) != 0 {
		t.Fatalf("sender must not run after cancellation")
	}
	if rx.procs[0].killed != 1 {
		t.Fatalf("receiver not killed")
	}
}
