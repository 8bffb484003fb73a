// Package emulator builds a small emulated network out of Linux network namespaces,
// veth pairs and a bridge, with a token-bucket bandwidth cap on every link.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vishvananda/netns"

	"demandexp/internal/config"
)

// Node is the view of an emulated host that traffic tools need.
type Node interface {
	Name() string
	IP() string
	Cmd(ctx context.Context, args ...string) (string, error)
	Background(ctx context.Context, args ...string) (Process, error)
}

// Host is an end host living in its own network namespace.
type Host struct {
	name    string
	ns      string
	ip      string
	iface   string
	swPort  string
	exec    Executor
	pinger  func(ns, dst string, timeout time.Duration) (time.Duration, error)
	maskLen int
}

// Name returns the topology name of the host (e.g. h1).
func (h *Host) Name() string { return h.name }

// IP returns the host's IPv4 address.
func (h *Host) IP() string { return h.ip }

// Namespace returns the network namespace backing the host.
func (h *Host) Namespace() string { return h.ns }

// Interface returns the host-side interface name.
func (h *Host) Interface() string { return h.iface }

// Cmd runs a command inside the host and returns its combined output.
func (h *Host) Cmd(ctx context.Context, args ...string) (string, error) {
	return h.exec.Run(ctx, "ip", append([]string{"netns", "exec", h.ns}, args...)...)
}

// Background starts a command inside the host without waiting for it.
func (h *Host) Background(ctx context.Context, args ...string) (Process, error) {
	return h.exec.Start(ctx, "ip", append([]string{"netns", "exec", h.ns}, args...)...)
}

// Network is the two-host, one-switch topology.
type Network struct {
	prefix    string
	bridge    string
	bandwidth float64
	hosts     []*Host
	exec      Executor
	nsCheck   func(name string) error
	undo      [][]string
	log       *slog.Logger
}

// New prepares a network from the topology config. Nothing is created until Start.
func New(topo config.Topology, exec Executor, log *slog.Logger) *Network {
	if log == nil {
		log = slog.Default()
	}
	n := &Network{
		prefix:    topo.Prefix,
		bridge:    topo.Prefix + "-" + topo.Switch,
		bandwidth: topo.BandwidthMbps,
		exec:      exec,
		nsCheck:   namespaceExists,
		log:       log,
	}
	for i, h := range topo.Hosts {
		n.hosts = append(n.hosts, &Host{
			name:    h.Name,
			ns:      topo.Prefix + "-" + h.Name,
			ip:      h.IP,
			iface:   topo.Prefix + "-" + h.Name + "-eth0",
			swPort:  n.bridge + "-eth" + strconv.Itoa(i+1),
			exec:    exec,
			pinger:  icmpPing,
			maskLen: topo.NetmaskBits,
		})
	}
	return n
}

// Hosts returns the hosts in topology order.
func (n *Network) Hosts() []*Host { return n.hosts }

// Host looks a host up by name.
func (n *Network) Host(name string) (*Host, bool) {
	for _, h := range n.hosts {
		if h.name == name {
			return h, true
		}
	}
	return nil, false
}

// Start creates the topology. On failure everything created so far is removed.
func (n *Network) Start(ctx context.Context) error {
	n.log.Info("adding switch", "bridge", n.bridge)
	if err := n.step(ctx, []string{"ip", "link", "del", n.bridge}, "ip", "link", "add", "name", n.bridge, "type", "bridge"); err != nil {
		return n.abort(ctx, err)
	}
	if err := n.run(ctx, "ip", "link", "set", n.bridge, "up"); err != nil {
		return n.abort(ctx, err)
	}

	for _, h := range n.hosts {
		n.log.Info("adding host", "host", h.name, "ip", h.ip, "namespace", h.ns)
		if err := n.addHost(ctx, h); err != nil {
			return n.abort(ctx, err)
		}
	}

	n.log.Info("creating links", "bandwidth_mbps", n.bandwidth)
	for _, h := range n.hosts {
		if err := n.shape(ctx, h); err != nil {
			return n.abort(ctx, err)
		}
	}

	for _, h := range n.hosts {
		if err := n.nsCheck(h.ns); err != nil {
			return n.abort(ctx, err)
		}
	}
	n.log.Info("network started", "hosts", len(n.hosts))
	return nil
}

func (n *Network) addHost(ctx context.Context, h *Host) error {
	if err := n.step(ctx, []string{"ip", "netns", "del", h.ns}, "ip", "netns", "add", h.ns); err != nil {
		return err
	}
	// Deleting the switch end of a veth pair removes its peer too.
	if err := n.step(ctx, []string{"ip", "link", "del", h.swPort}, "ip", "link", "add", h.iface, "type", "veth", "peer", "name", h.swPort); err != nil {
		return err
	}
	cidr := fmt.Sprintf("%s/%d", h.ip, h.maskLen)
	cmds := [][]string{
		{"ip", "link", "set", h.iface, "netns", h.ns},
		{"ip", "link", "set", h.swPort, "master", n.bridge},
		{"ip", "link", "set", h.swPort, "up"},
		{"ip", "-n", h.ns, "addr", "add", cidr, "dev", h.iface},
		{"ip", "-n", h.ns, "link", "set", h.iface, "up"},
		{"ip", "-n", h.ns, "link", "set", "lo", "up"},
	}
	for _, c := range cmds {
		if err := n.run(ctx, c[0], c[1:]...); err != nil {
			return err
		}
	}
	return nil
}

// shape caps both ends of the host's link at the configured bandwidth.
func (n *Network) shape(ctx context.Context, h *Host) error {
	tbf := tbfArgs(n.bandwidth)
	hostSide := append([]string{"-n", h.ns, "qdisc", "add", "dev", h.iface, "root"}, tbf...)
	if err := n.run(ctx, "tc", hostSide...); err != nil {
		return err
	}
	switchSide := append([]string{"qdisc", "add", "dev", h.swPort, "root"}, tbf...)
	return n.run(ctx, "tc", switchSide...)
}

// tbfArgs returns a token bucket filter limited to mbps, with a burst of 10ms of traffic.
func tbfArgs(mbps float64) []string {
	burst := int(mbps * 1e6 / 8 / 100)
	if burst < 15000 {
		burst = 15000
	}
	return []string{
		"tbf",
		"rate", strconv.FormatFloat(mbps, 'f', -1, 64) + "mbit",
		"burst", strconv.Itoa(burst),
		"latency", "50ms",
	}
}

// Stop removes everything Start created, newest first. All steps run even if some fail.
func (n *Network) Stop(ctx context.Context) error {
	n.log.Info("stopping network", "bridge", n.bridge)
	var errs []error
	for i := len(n.undo) - 1; i >= 0; i-- {
		c := n.undo[i]
		if _, err := n.exec.Run(ctx, c[0], c[1:]...); err != nil && !isNotFound(err) {
			errs = append(errs, err)
		}
	}
	n.undo = nil
	return errors.Join(errs...)
}

func (n *Network) abort(ctx context.Context, err error) error {
	if stopErr := n.Stop(context.WithoutCancel(ctx)); stopErr != nil {
		return fmt.Errorf("start network: %w (rollback: %v)", err, stopErr)
	}
	return fmt.Errorf("start network: %w", err)
}

// step runs a creating command and records how to undo it.
func (n *Network) step(ctx context.Context, undo []string, name string, args ...string) error {
	if err := n.run(ctx, name, args...); err != nil {
		return err
	}
	n.undo = append(n.undo, undo)
	return nil
}

func (n *Network) run(ctx context.Context, name string, args ...string) error {
	_, err := n.exec.Run(ctx, name, args...)
	return err
}

func namespaceExists(name string) error {
	h, err := netns.GetFromName(name)
	if err != nil {
		return fmt.Errorf("namespace %s: %w", name, err)
	}
	return h.Close()
}

func isNotFound(err error) bool {
	var ce *CommandError
	if !errors.As(err, &ce) {
		return false
	}
	out := strings.ToLower(ce.Output)
	return strings.Contains(out, "cannot find device") ||
		strings.Contains(out, "no such file") ||
		strings.Contains(out, "does not exist")
}

// Node looks a host up by name and returns it as a Node.
func (n *Network) Node(name string) (Node, bool) {
	h, ok := n.Host(name)
	if !ok {
		return nil, false
	}
	return h, true
}
