package emulator

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"demandexp/internal/config"
)

// Cleanup removes namespaces and the switch bridge left behind by an aborted run.
// It returns the names of the removed resources.
func Cleanup(ctx context.Context, exec Executor, topo config.Topology) ([]string, error) {
	var removed []string
	var errs []error

	out, err := exec.Run(ctx, "ip", "netns", "list")
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], topo.Prefix+"-") {
			continue
		}
		if _, err := exec.Run(ctx, "ip", "netns", "del", fields[0]); err != nil && !isNotFound(err) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, fields[0])
	}

	bridge := topo.Prefix + "-" + topo.Switch
	if _, err := exec.Run(ctx, "ip", "link", "show", "dev", bridge); err == nil {
		if _, err := exec.Run(ctx, "ip", "link", "del", bridge); err != nil {
			errs = append(errs, err)
		} else {
			removed = append(removed, bridge)
		}
	}
	return removed, errors.Join(errs...)
}
