package emulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/vishvananda/netns"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// PingResult is the outcome of one host-to-host echo.
type PingResult struct {
	From string
	To   string
	RTT  time.Duration
	Err  error
}

// Ping sends one ICMP echo from inside the host to dst.
func (h *Host) Ping(ctx context.Context, dst string, timeout time.Duration) (time.Duration, error) {
	type result struct {
		rtt time.Duration
		err error
	}
	ch := make(chan result, 1)
	go func() {
		rtt, err := h.pinger(h.ns, dst, timeout)
		ch <- result{rtt, err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		return r.rtt, r.err
	}
}

// PingAll checks reachability between every ordered pair of hosts.
func (n *Network) PingAll(ctx context.Context, timeout time.Duration) ([]PingResult, error) {
	var results []PingResult
	var errs []error
	for _, src := range n.hosts {
		for _, dst := range n.hosts {
			if src == dst {
				continue
			}
			rtt, err := src.Ping(ctx, dst.ip, timeout)
			results = append(results, PingResult{From: src.name, To: dst.name, RTT: rtt, Err: err})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s -> %s: %w", src.name, dst.name, err))
				continue
			}
			n.log.Info("ping", "from", src.name, "to", dst.name, "rtt", rtt)
		}
	}
	return results, errors.Join(errs...)
}

// icmpPing enters the namespace on a locked OS thread, opens a raw ICMP socket
// there and waits for the echo reply.
func icmpPing(ns, dst string, timeout time.Duration) (time.Duration, error) {
	runtime.LockOSThread()

	origin, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		return 0, fmt.Errorf("current namespace: %w", err)
	}
	defer origin.Close()

	target, err := netns.GetFromName(ns)
	if err != nil {
		runtime.UnlockOSThread()
		return 0, fmt.Errorf("namespace %s: %w", ns, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		runtime.UnlockOSThread()
		return 0, fmt.Errorf("enter namespace %s: %w", ns, err)
	}
	defer func() {
		// A thread stuck in the wrong namespace must not go back to the scheduler.
		if err := netns.Set(origin); err == nil {
			runtime.UnlockOSThread()
		}
	}()

	return echo(dst, timeout)
}

func echo(dst string, timeout time.Duration) (time.Duration, error) {
	addr, err := net.ResolveIPAddr("ip4", dst)
	if err != nil {
		return 0, err
	}
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: 1, Data: []byte("demandexp-ping")},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := conn.WriteTo(b, addr); err != nil {
		return 0, err
	}
	if err := conn.SetReadDeadline(start.Add(timeout)); err != nil {
		return 0, err
	}
	buf := make([]byte, 1500)
	for {
		nr, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, err
		}
		reply, err := icmp.ParseMessage(1, buf[:nr])
		if err != nil {
			continue
		}
		if reply.Type != ipv4.ICMPTypeEchoReply || peer.String() != addr.String() {
			continue
		}
		if e, ok := reply.Body.(*icmp.Echo); ok && e.ID == id {
			return time.Since(start), nil
		}
	}
}
