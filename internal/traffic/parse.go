package traffic

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoReport means the output holds no UDP loss report, typically because the
// receiver never answered.
var ErrNoReport = errors.New("no receiver report in traffic tool output")

var (
	latencyRe = regexp.MustCompile(`(\d+\.\d+)\s*ms`)
	lossRe    = regexp.MustCompile(`\((\d+(?:\.\d+)?(?:e[+-]?\d+)?)%\)`)
	packetsRe = regexp.MustCompile(`(\d+)\s*/\s*(\d+)\s+\(`)
)

// Report holds the metrics extracted from one sender run.
type Report struct {
	LatencyMs float64
	LossPct   float64
	Lost      int
	Sent      int
}

// Parse extracts latency, loss and datagram counts from iperf or iperf3 UDP client output.
// When datagram counts are present the loss is recomputed from them.
func Parse(output string) (Report, error) {
	line, ok := reportLine(output)
	if !ok {
		return Report{}, ErrNoReport
	}

	var r Report
	if m := latencyRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Report{}, err
		}
		r.LatencyMs = v
	}
	if m := lossRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Report{}, err
		}
		r.LossPct = v
	}
	if m := packetsRe.FindStringSubmatch(line); m != nil {
		lost, err := strconv.Atoi(m[1])
		if err != nil {
			return Report{}, err
		}
		sent, err := strconv.Atoi(m[2])
		if err != nil {
			return Report{}, err
		}
		r.Lost, r.Sent = lost, sent
		if sent > 0 {
			r.LossPct = float64(lost) / float64(sent) * 100
		}
	}
	return r, nil
}

// reportLine picks the line carrying the loss report. iperf3 prints a sender and a
// receiver summary; the receiver one is authoritative. iperf prints one under
// "Server Report:", formatting the percentage with %.2g (e.g. "(1e+02%)").
func reportLine(output string) (string, bool) {
	var last string
	found := false
	for _, l := range strings.Split(output, "\n") {
		if !lossRe.MatchString(l) && !packetsRe.MatchString(l) {
			continue
		}
		if strings.Contains(l, "receiver") {
			return l, true
		}
		last, found = l, true
	}
	return last, found
}
