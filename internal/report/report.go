// Package report writes the plain-text results file and the comparison charts.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"demandexp/internal/experiment"
	"demandexp/internal/scenario"
)

// ResultsFile is the name of the text report inside the output directory.
const ResultsFile = "results.txt"

// ErrMalformed is returned when a results file cannot be read back.
var ErrMalformed = errors.New("malformed results file")

// Metrics are the averages of one scenario.
type Metrics struct {
	LatencyMs float64
	LossPct   float64
}

// Results compares the known and unknown demand scenarios.
type Results struct {
	Known   Metrics
	Unknown Metrics
}

// FromSummary picks the known and unknown scenario averages out of a run summary.
func FromSummary(sum *experiment.Summary) (Results, error) {
	known, ok := sum.Scenario(scenario.KnownName)
	if !ok {
		return Results{}, fmt.Errorf("summary has no %q scenario", scenario.KnownName)
	}
	unknown, ok := sum.Scenario(scenario.UnknownName)
	if !ok {
		return Results{}, fmt.Errorf("summary has no %q scenario", scenario.UnknownName)
	}
	return Results{
		Known:   Metrics{LatencyMs: known.AvgLatency, LossPct: known.AvgLoss},
		Unknown: Metrics{LatencyMs: unknown.AvgLatency, LossPct: unknown.AvgLoss},
	}, nil
}

// Write renders the report text.
func Write(w io.Writer, r Results) error {
	_, err := fmt.Fprintf(w,
		"Known Demands:\nAverage Latency: %.2f ms\nPacket Loss: %.2f%%\n\n"+
			"Unknown Demands:\nAverage Latency: %.2f ms\nPacket Loss: %.2f%%\n",
		r.Known.LatencyMs, r.Known.LossPct, r.Unknown.LatencyMs, r.Unknown.LossPct)
	return err
}

// WriteText writes results.txt into dir, creating dir if needed, and returns its path.
func WriteText(dir string, r Results) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, ResultsFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// ParseText reads a report produced by Write.
func ParseText(rd io.Reader) (Results, error) {
	var (
		res     Results
		cur     *Metrics
		seen    = map[string]bool{}
		scanner = bufio.NewScanner(rd)
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "Known Demands:":
			cur = &res.Known
			seen["known"] = true
		case line == "Unknown Demands:":
			cur = &res.Unknown
			seen["unknown"] = true
		case strings.HasPrefix(line, "Average Latency:"):
			if cur == nil {
				return Results{}, fmt.Errorf("%w: latency outside a section", ErrMalformed)
			}
			if _, err := fmt.Sscanf(line, "Average Latency: %f ms", &cur.LatencyMs); err != nil {
				return Results{}, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
			}
		case strings.HasPrefix(line, "Packet Loss:"):
			if cur == nil {
				return Results{}, fmt.Errorf("%w: loss outside a section", ErrMalformed)
			}
			if _, err := fmt.Sscanf(strings.TrimSuffix(line, "%"), "Packet Loss: %f", &cur.LossPct); err != nil {
				return Results{}, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
			}
		default:
			return Results{}, fmt.Errorf("%w: unexpected line %q", ErrMalformed, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return Results{}, err
	}
	if !seen["known"] || !seen["unknown"] {
		return Results{}, fmt.Errorf("%w: missing known or unknown section", ErrMalformed)
	}
	return res, nil
}

// ReadFile parses the results file at path.
func ReadFile(path string) (Results, error) {
	f, err := os.Open(path)
	if err != nil {
		return Results{}, err
	}
	defer f.Close()
	return ParseText(f)
}
