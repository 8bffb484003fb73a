package traffic

import (
	"errors"
	"math"
	"os"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParse(t *testing.T) {
	cases := []struct {
		file    string
		latency float64
		loss    float64
		lost    int
		sent    int
	}{
		{"testdata/iperf2_udp.txt", 0.015, 85.0 / 8505 * 100, 85, 8505},
		{"testdata/iperf21_udp.txt", 0.121, 680.0 / 17007 * 100, 680, 17007},
		{"testdata/iperf3_udp.txt", 0.027, 86.0 / 8632 * 100, 86, 8632},
		{"testdata/iperf2_total_loss.txt", 0.500, 16995.0 / 17000 * 100, 16995, 17000},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			b, err := os.ReadFile(tc.file)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			r, err := Parse(string(b))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !almostEqual(r.LatencyMs, tc.latency) {
				t.Errorf("latency = %v, want %v", r.LatencyMs, tc.latency)
			}
			if !almostEqual(r.LossPct, tc.loss) {
				t.Errorf("loss = %v, want %v", r.LossPct, tc.loss)
			}
			if r.Lost != tc.lost || r.Sent != tc.sent {
				t.Errorf("lost/sent = %d/%d, want %d/%d", r.Lost, r.Sent, tc.lost, tc.sent)
			}
		})
	}
}

func TestParseNoReport(t *testing.T) {
	b, err := os.ReadFile("testdata/iperf2_no_ack.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := Parse(string(b)); !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected ErrNoReport, got %v", err)
	}
	if _, err := Parse(""); !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected ErrNoReport for empty output, got %v", err)
	}
}

func TestParseLossWithoutCounts(t *testing.T) {
	r, err := Parse("[  3]  0.0- 2.0 sec  1.00 MBytes  4.0 Mbits/sec   1.250 ms (12.5%)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.LatencyMs != 1.25 || r.LossPct != 12.5 || r.Sent != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestParseZeroSent(t *testing.T) {
	r, err := Parse("0.000 ms 0/0 (0%)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.LossPct != 0 || r.Sent != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestParseExponentLoss(t *testing.T) {
	r, err := Parse("[  3]  0.0- 2.0 sec  7.15 KBytes  29.3 Kbits/sec   0.500 ms (1e+02%)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.LatencyMs != 0.5 || r.LossPct != 100 {
		t.Fatalf("unexpected report %+v", r)
	}
}
